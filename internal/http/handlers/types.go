package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bookinglink/bookinglink/internal/appointments"
	"github.com/bookinglink/bookinglink/pkg/logging"
)

// TypeStore persists appointment types.
type TypeStore interface {
	GetType(ctx context.Context, clinicID, typeID string) (*appointments.Type, error)
	PutType(ctx context.Context, t *appointments.Type) error
	ListTypes(ctx context.Context, clinicID string) ([]appointments.Type, error)
}

// TypesHandler serves appointment-type management.
type TypesHandler struct {
	store  TypeStore
	logger *logging.Logger
}

func NewTypesHandler(store TypeStore, logger *logging.Logger) *TypesHandler {
	if store == nil {
		panic("handlers: type store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TypesHandler{store: store, logger: logger}
}

// List handles GET /api/appointment-types.
func (h *TypesHandler) List(w http.ResponseWriter, r *http.Request) {
	clinic, ok := clinicID(w, r)
	if !ok {
		return
	}
	list, err := h.store.ListTypes(r.Context(), clinic)
	if err != nil {
		h.logger.Error("list types failed", "clinic_id", clinic, "error", err)
		respondError(w, storageStatus(err), "failed to list appointment types")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"appointmentTypes": list})
}

// Get handles GET /api/appointment-types/{typeID}.
func (h *TypesHandler) Get(w http.ResponseWriter, r *http.Request) {
	clinic, ok := clinicID(w, r)
	if !ok {
		return
	}
	typeID := strings.TrimSpace(chi.URLParam(r, "typeID"))
	if typeID == "" {
		respondError(w, http.StatusBadRequest, "typeID required")
		return
	}
	t, err := h.store.GetType(r.Context(), clinic, typeID)
	if err != nil {
		respondError(w, storageStatus(err), "failed to load appointment type")
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// Put handles POST /api/appointment-types and PUT /api/appointment-types/{typeID}.
func (h *TypesHandler) Put(w http.ResponseWriter, r *http.Request) {
	clinic, ok := clinicID(w, r)
	if !ok {
		return
	}
	var t appointments.Type
	if !decodeBody(w, r, &t) {
		return
	}
	t.ClinicID = clinic
	if typeID := strings.TrimSpace(chi.URLParam(r, "typeID")); typeID != "" {
		t.ID = typeID
	}
	created := t.ID == ""
	if created {
		t.ID = uuid.NewString()
	}
	if err := t.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.PutType(r.Context(), &t); err != nil {
		h.logger.Error("save type failed", "clinic_id", clinic, "type_id", t.ID, "error", err)
		respondError(w, storageStatus(err), "failed to save appointment type")
		return
	}
	if created {
		respondJSON(w, http.StatusCreated, t)
		return
	}
	respondJSON(w, http.StatusOK, t)
}
