package handlers

import (
	"context"
	"net/http"

	"github.com/bookinglink/bookinglink/internal/clinic"
	"github.com/bookinglink/bookinglink/internal/compliance"
	"github.com/bookinglink/bookinglink/pkg/logging"
)

// SettingsStore persists clinic settings.
type SettingsStore interface {
	Get(ctx context.Context, clinicID string) (*clinic.Settings, error)
	Put(ctx context.Context, settings *clinic.Settings) error
}

// SettingsHandler serves clinic configuration.
type SettingsHandler struct {
	store  SettingsStore
	audit  Auditor
	logger *logging.Logger
}

func NewSettingsHandler(store SettingsStore, audit Auditor, logger *logging.Logger) *SettingsHandler {
	if store == nil {
		panic("handlers: settings store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SettingsHandler{store: store, audit: audit, logger: logger}
}

// Get handles GET /api/clinic/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	clinicID, ok := clinicID(w, r)
	if !ok {
		return
	}
	settings, err := h.store.Get(r.Context(), clinicID)
	if err != nil {
		h.logger.Error("load settings failed", "clinic_id", clinicID, "error", err)
		respondError(w, storageStatus(err), "failed to load settings")
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

// Put handles PUT /api/clinic/settings.
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	clinicID, ok := clinicID(w, r)
	if !ok {
		return
	}
	var settings clinic.Settings
	if !decodeBody(w, r, &settings) {
		return
	}
	settings.ClinicID = clinicID
	if err := settings.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.Put(r.Context(), &settings); err != nil {
		h.logger.Error("save settings failed", "clinic_id", clinicID, "error", err)
		respondError(w, storageStatus(err), "failed to save settings")
		return
	}
	if h.audit != nil {
		if err := h.audit.LogEvent(r.Context(), compliance.AuditEvent{
			EventType: compliance.EventSettingsUpdated,
			ClinicID:  clinicID,
			ActorID:   actorID(r),
			Details:   map[string]string{"timezone": settings.Timezone},
		}); err != nil {
			h.logger.Warn("audit log failed", "clinic_id", clinicID, "error", err)
		}
	}
	respondJSON(w, http.StatusOK, settings)
}
