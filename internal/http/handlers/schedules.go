package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bookinglink/bookinglink/internal/compliance"
	"github.com/bookinglink/bookinglink/internal/schedule"
	"github.com/bookinglink/bookinglink/internal/storage"
	"github.com/bookinglink/bookinglink/pkg/logging"
)

// ScheduleStore persists provider working hours.
type ScheduleStore interface {
	GetWeekly(ctx context.Context, clinicID, providerID string) (*schedule.Weekly, error)
	PutWeekly(ctx context.Context, w *schedule.Weekly) error
	PutException(ctx context.Context, e *schedule.Exception) error
	DeleteException(ctx context.Context, clinicID, providerID, date string) error
	ListExceptions(ctx context.Context, clinicID, providerID, fromDate, toDate string) (map[string]schedule.Exception, error)
}

// CacheInvalidator drops cached slots after a schedule change.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, clinicID, providerID string)
}

// Auditor records compliance events. Optional.
type Auditor interface {
	LogEvent(ctx context.Context, event compliance.AuditEvent) error
}

// SchedulesHandler serves provider schedule and exception management.
type SchedulesHandler struct {
	store  ScheduleStore
	cache  CacheInvalidator
	audit  Auditor
	logger *logging.Logger
}

func NewSchedulesHandler(store ScheduleStore, cache CacheInvalidator, audit Auditor, logger *logging.Logger) *SchedulesHandler {
	if store == nil {
		panic("handlers: schedule store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SchedulesHandler{store: store, cache: cache, audit: audit, logger: logger}
}

// GetWeekly handles GET /api/providers/{providerID}/schedule.
func (h *SchedulesHandler) GetWeekly(w http.ResponseWriter, r *http.Request) {
	clinic, ok := clinicID(w, r)
	if !ok {
		return
	}
	providerID := strings.TrimSpace(chi.URLParam(r, "providerID"))
	if providerID == "" {
		respondError(w, http.StatusBadRequest, "providerID required")
		return
	}
	weekly, err := h.store.GetWeekly(r.Context(), clinic, providerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "no schedule saved for provider")
			return
		}
		h.logger.Error("load schedule failed", "clinic_id", clinic, "provider_id", providerID, "error", err)
		respondError(w, storageStatus(err), "failed to load schedule")
		return
	}
	respondJSON(w, http.StatusOK, weekly)
}

// PutWeekly handles PUT /api/providers/{providerID}/schedule.
func (h *SchedulesHandler) PutWeekly(w http.ResponseWriter, r *http.Request) {
	clinic, ok := clinicID(w, r)
	if !ok {
		return
	}
	providerID := strings.TrimSpace(chi.URLParam(r, "providerID"))
	if providerID == "" {
		respondError(w, http.StatusBadRequest, "providerID required")
		return
	}
	var weekly schedule.Weekly
	if !decodeBody(w, r, &weekly) {
		return
	}
	weekly.ClinicID = clinic
	weekly.ProviderID = providerID
	weekly.UpdatedAt = time.Now().UTC()

	if err := weekly.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.PutWeekly(r.Context(), &weekly); err != nil {
		h.logger.Error("save schedule failed", "clinic_id", clinic, "provider_id", providerID, "error", err)
		respondError(w, storageStatus(err), "failed to save schedule")
		return
	}
	h.invalidateAndAudit(r, clinic, providerID, compliance.EventScheduleUpdated, map[string]string{
		"providerId": providerID,
	})
	respondJSON(w, http.StatusOK, weekly)
}

// ListExceptions handles GET /api/providers/{providerID}/exceptions?from=&to=
// with clinic-local dates.
func (h *SchedulesHandler) ListExceptions(w http.ResponseWriter, r *http.Request) {
	clinic, ok := clinicID(w, r)
	if !ok {
		return
	}
	providerID := strings.TrimSpace(chi.URLParam(r, "providerID"))
	fromDate := r.URL.Query().Get("from")
	toDate := r.URL.Query().Get("to")
	if providerID == "" || fromDate == "" || toDate == "" {
		respondError(w, http.StatusBadRequest, "providerID, from and to required")
		return
	}
	for _, d := range []string{fromDate, toDate} {
		if _, err := time.Parse(schedule.DateLayout, d); err != nil {
			respondError(w, http.StatusBadRequest, "dates must be YYYY-MM-DD")
			return
		}
	}
	exceptions, err := h.store.ListExceptions(r.Context(), clinic, providerID, fromDate, toDate)
	if err != nil {
		h.logger.Error("list exceptions failed", "clinic_id", clinic, "provider_id", providerID, "error", err)
		respondError(w, storageStatus(err), "failed to list exceptions")
		return
	}
	out := make([]schedule.Exception, 0, len(exceptions))
	for _, e := range exceptions {
		out = append(out, e)
	}
	respondJSON(w, http.StatusOK, map[string]any{"exceptions": out})
}

// PutException handles PUT /api/providers/{providerID}/exceptions/{date}.
func (h *SchedulesHandler) PutException(w http.ResponseWriter, r *http.Request) {
	clinic, ok := clinicID(w, r)
	if !ok {
		return
	}
	providerID := strings.TrimSpace(chi.URLParam(r, "providerID"))
	date := strings.TrimSpace(chi.URLParam(r, "date"))
	if providerID == "" || date == "" {
		respondError(w, http.StatusBadRequest, "providerID and date required")
		return
	}
	var exc schedule.Exception
	if !decodeBody(w, r, &exc) {
		return
	}
	exc.ClinicID = clinic
	exc.ProviderID = providerID
	exc.Date = date
	exc.UpdatedAt = time.Now().UTC()

	if err := exc.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.PutException(r.Context(), &exc); err != nil {
		h.logger.Error("save exception failed", "clinic_id", clinic, "provider_id", providerID, "date", date, "error", err)
		respondError(w, storageStatus(err), "failed to save exception")
		return
	}
	h.invalidateAndAudit(r, clinic, providerID, compliance.EventExceptionUpdated, map[string]string{
		"providerId": providerID,
		"date":       date,
	})
	respondJSON(w, http.StatusOK, exc)
}

// DeleteException handles DELETE /api/providers/{providerID}/exceptions/{date}.
func (h *SchedulesHandler) DeleteException(w http.ResponseWriter, r *http.Request) {
	clinic, ok := clinicID(w, r)
	if !ok {
		return
	}
	providerID := strings.TrimSpace(chi.URLParam(r, "providerID"))
	date := strings.TrimSpace(chi.URLParam(r, "date"))
	if providerID == "" || date == "" {
		respondError(w, http.StatusBadRequest, "providerID and date required")
		return
	}
	if _, err := time.Parse(schedule.DateLayout, date); err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	if err := h.store.DeleteException(r.Context(), clinic, providerID, date); err != nil {
		h.logger.Error("delete exception failed", "clinic_id", clinic, "provider_id", providerID, "date", date, "error", err)
		respondError(w, storageStatus(err), "failed to delete exception")
		return
	}
	h.invalidateAndAudit(r, clinic, providerID, compliance.EventExceptionUpdated, map[string]string{
		"providerId": providerID,
		"date":       date,
		"removed":    "true",
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *SchedulesHandler) invalidateAndAudit(r *http.Request, clinic, providerID string, eventType compliance.AuditEventType, details map[string]string) {
	ctx := r.Context()
	if h.cache != nil {
		h.cache.Invalidate(ctx, clinic, providerID)
	}
	if h.audit == nil {
		return
	}
	if err := h.audit.LogEvent(ctx, compliance.AuditEvent{
		EventType:  eventType,
		ClinicID:   clinic,
		ActorID:    actorID(r),
		ProviderID: providerID,
		Details:    details,
	}); err != nil {
		h.logger.Warn("audit log failed", "clinic_id", clinic, "event", string(eventType), "error", err)
	}
}
