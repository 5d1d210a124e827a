// Package handlers implements the HTTP API surface of the booking engine.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bookinglink/bookinglink/internal/storage"
	"github.com/bookinglink/bookinglink/internal/tenancy"
)

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

// clinicID pulls the tenant from the request context set by the auth
// middleware. A missing clinic means the route was mounted without it.
func clinicID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := tenancy.ClinicIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing clinic scope")
	}
	return id, ok
}

func actorID(r *http.Request) string {
	actor, _ := tenancy.ActorFromContext(r.Context())
	return actor
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// storageStatus maps storage errors onto HTTP statuses shared by the
// read endpoints.
func storageStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
