package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func corsRequest(origin string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/providers/p1/slots", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if called != nil {
			*called = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSEchoesListedOrigin(t *testing.T) {
	called := false
	mw := CORS([]string{"https://booking.example.com"})
	rec := httptest.NewRecorder()

	mw(okHandler(&called)).ServeHTTP(rec, corsRequest("https://booking.example.com"))

	if !called {
		t.Fatal("handler should run for simple requests")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://booking.example.com" {
		t.Fatalf("allow origin = %q", got)
	}
	headers := rec.Header().Get("Access-Control-Allow-Headers")
	if !strings.Contains(headers, "Authorization") || !strings.Contains(headers, "X-Clinic-Id") {
		t.Fatalf("allow headers missing auth headers: %q", headers)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatal("allow methods header missing")
	}
}

func TestCORSSkipsUnlistedOrigin(t *testing.T) {
	mw := CORS([]string{"https://booking.example.com"})
	rec := httptest.NewRecorder()

	mw(okHandler(nil)).ServeHTTP(rec, corsRequest("https://evil.example"))

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow origin header, got %q", got)
	}
}

func TestCORSWildcardEchoesAnyOrigin(t *testing.T) {
	mw := CORS([]string{"*"})
	rec := httptest.NewRecorder()

	mw(okHandler(nil)).ServeHTTP(rec, corsRequest("https://anywhere.example"))

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://anywhere.example" {
		t.Fatalf("allow origin = %q", got)
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	called := false
	mw := CORS([]string{"https://booking.example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/api/appointments", nil)
	req.Header.Set("Origin", "https://booking.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()

	mw(okHandler(&called)).ServeHTTP(rec, req)

	if called {
		t.Fatal("preflight must not reach the handler")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
}
