package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookinglink/bookinglink/internal/tenancy"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func authedRequest(t *testing.T, claims Claims) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, claims))
	return req
}

func staffClaims() Claims {
	return Claims{
		ClinicID: "clinic-1",
		Role:     tenancy.RoleStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestAuthValidToken(t *testing.T) {
	var gotClinic, gotActor, gotRole string
	handler := Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClinic, _ = tenancy.ClinicIDFromContext(r.Context())
		gotActor, _ = tenancy.ActorFromContext(r.Context())
		gotRole, _ = tenancy.RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, staffClaims()))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "clinic-1", gotClinic)
	assert.Equal(t, "user-1", gotActor)
	assert.Equal(t, tenancy.RoleStaff, gotRole)
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	handler := Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, staffClaims())
	signed, err := token.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	Auth(testSecret)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	claims := staffClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	rec := httptest.NewRecorder()
	Auth(testSecret)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rec, authedRequest(t, claims))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsMissingClinic(t *testing.T) {
	claims := staffClaims()
	claims.ClinicID = ""

	rec := httptest.NewRecorder()
	Auth(testSecret)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rec, authedRequest(t, claims))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthDisabledWithoutSecret(t *testing.T) {
	rec := httptest.NewRecorder()
	Auth("")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	handler := Auth(testSecret)(RequireRole(tenancy.RoleStaff)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, staffClaims()))
	assert.Equal(t, http.StatusOK, rec.Code)

	patient := staffClaims()
	patient.Role = tenancy.RolePatient
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, patient))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
