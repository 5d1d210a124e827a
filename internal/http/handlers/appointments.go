package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bookinglink/bookinglink/internal/appointments"
	"github.com/bookinglink/bookinglink/internal/booking"
	"github.com/bookinglink/bookinglink/pkg/logging"
)

// BookingService books appointments and manages their lifecycle.
type BookingService interface {
	Book(ctx context.Context, req booking.Request) (*appointments.Appointment, error)
	BookRecurring(ctx context.Context, req booking.Request, rec booking.Recurrence) (string, []booking.OccurrenceResult, error)
	UpdateStatus(ctx context.Context, clinicID, appointmentID string, to appointments.Status, actorID string) (*appointments.Appointment, error)
	CancelSeries(ctx context.Context, clinicID, groupID, actorID string) (int, error)
}

// AppointmentReader serves appointment lookups.
type AppointmentReader interface {
	GetByID(ctx context.Context, clinicID, appointmentID string) (*appointments.Appointment, error)
	ListForProviderRange(ctx context.Context, clinicID, providerID string, from, to time.Time) ([]appointments.Appointment, error)
}

// AppointmentsHandler serves booking and lifecycle endpoints.
type AppointmentsHandler struct {
	svc    BookingService
	reader AppointmentReader
	logger *logging.Logger
}

func NewAppointmentsHandler(svc BookingService, reader AppointmentReader, logger *logging.Logger) *AppointmentsHandler {
	if svc == nil || reader == nil {
		panic("handlers: booking service and appointment reader required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{svc: svc, reader: reader, logger: logger}
}

type bookRequest struct {
	PatientID  string              `json:"patientId"`
	ProviderID string              `json:"providerId"`
	TypeID     string              `json:"typeId"`
	Start      time.Time           `json:"startTime"`
	Notes      string              `json:"notes,omitempty"`
	Recurrence *booking.Recurrence `json:"recurrence,omitempty"`
}

type seriesResponse struct {
	RecurrenceGroupID string                      `json:"recurrenceGroupId"`
	Occurrences       []occurrenceResult          `json:"occurrences"`
	Booked            int                         `json:"booked"`
	Failed            int                         `json:"failed"`
	Appointments      []*appointments.Appointment `json:"appointments"`
}

type occurrenceResult struct {
	Index     int       `json:"index"`
	StartTime time.Time `json:"startTime"`
	Booked    bool      `json:"booked"`
	Error     string    `json:"error,omitempty"`
}

// Create handles POST /api/appointments. A recurrence block switches the
// request from a single booking to a series.
func (h *AppointmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	clinic, ok := clinicID(w, r)
	if !ok {
		return
	}
	var body bookRequest
	if !decodeBody(w, r, &body) {
		return
	}
	req := booking.Request{
		ClinicID:   clinic,
		PatientID:  body.PatientID,
		ProviderID: body.ProviderID,
		TypeID:     body.TypeID,
		Start:      body.Start,
		Notes:      body.Notes,
		ActorID:    actorID(r),
	}

	if body.Recurrence == nil {
		appt, err := h.svc.Book(r.Context(), req)
		if err != nil {
			h.respondBookingError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, appt)
		return
	}

	groupID, results, err := h.svc.BookRecurring(r.Context(), req, *body.Recurrence)
	if err != nil {
		h.respondBookingError(w, r, err)
		return
	}
	resp := seriesResponse{RecurrenceGroupID: groupID}
	for _, res := range results {
		occ := occurrenceResult{Index: res.Index, StartTime: res.Start, Booked: res.Err == nil}
		if res.Err != nil {
			occ.Error = res.Err.Error()
			resp.Failed++
		} else {
			resp.Booked++
			resp.Appointments = append(resp.Appointments, res.Appointment)
		}
		resp.Occurrences = append(resp.Occurrences, occ)
	}
	status := http.StatusCreated
	if resp.Booked == 0 {
		status = http.StatusConflict
	}
	respondJSON(w, status, resp)
}

// Get handles GET /api/appointments/{appointmentID}.
func (h *AppointmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	clinic, ok := clinicID(w, r)
	if !ok {
		return
	}
	appointmentID := strings.TrimSpace(chi.URLParam(r, "appointmentID"))
	if appointmentID == "" {
		respondError(w, http.StatusBadRequest, "appointmentID required")
		return
	}
	appt, err := h.reader.GetByID(r.Context(), clinic, appointmentID)
	if err != nil {
		respondError(w, storageStatus(err), "failed to load appointment")
		return
	}
	respondJSON(w, http.StatusOK, appt)
}

// ListForProvider handles GET /api/providers/{providerID}/appointments?from=&to=.
func (h *AppointmentsHandler) ListForProvider(w http.ResponseWriter, r *http.Request) {
	clinic, ok := clinicID(w, r)
	if !ok {
		return
	}
	providerID := strings.TrimSpace(chi.URLParam(r, "providerID"))
	if providerID == "" {
		respondError(w, http.StatusBadRequest, "providerID required")
		return
	}
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "from must be RFC 3339")
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "to must be RFC 3339")
		return
	}
	appts, err := h.reader.ListForProviderRange(r.Context(), clinic, providerID, from, to)
	if err != nil {
		h.logger.Error("list appointments failed", "clinic_id", clinic, "provider_id", providerID, "error", err)
		respondError(w, storageStatus(err), "failed to list appointments")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles POST /api/appointments/{appointmentID}/status.
func (h *AppointmentsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	clinic, ok := clinicID(w, r)
	if !ok {
		return
	}
	appointmentID := strings.TrimSpace(chi.URLParam(r, "appointmentID"))
	if appointmentID == "" {
		respondError(w, http.StatusBadRequest, "appointmentID required")
		return
	}
	var body statusRequest
	if !decodeBody(w, r, &body) {
		return
	}
	to := appointments.Status(body.Status)
	if !to.Valid() {
		respondError(w, http.StatusBadRequest, "unknown status")
		return
	}
	appt, err := h.svc.UpdateStatus(r.Context(), clinic, appointmentID, to, actorID(r))
	if err != nil {
		if errors.Is(err, appointments.ErrInvalidTransition) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("status update failed",
			"clinic_id", clinic, "appointment_id", appointmentID, "to", body.Status, "error", err)
		respondError(w, storageStatus(err), "failed to update status")
		return
	}
	respondJSON(w, http.StatusOK, appt)
}

// CancelSeries handles DELETE /api/recurrences/{groupID}: cancels every
// remaining active appointment in the series.
func (h *AppointmentsHandler) CancelSeries(w http.ResponseWriter, r *http.Request) {
	clinic, ok := clinicID(w, r)
	if !ok {
		return
	}
	groupID := strings.TrimSpace(chi.URLParam(r, "groupID"))
	if groupID == "" {
		respondError(w, http.StatusBadRequest, "groupID required")
		return
	}
	cancelled, err := h.svc.CancelSeries(r.Context(), clinic, groupID, actorID(r))
	if err != nil {
		h.logger.Error("cancel series failed", "clinic_id", clinic, "group_id", groupID, "error", err)
		respondError(w, storageStatus(err), "failed to cancel series")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"cancelled": cancelled})
}

func (h *AppointmentsHandler) respondBookingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, booking.ErrSlotConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, booking.ErrInvalidSlot):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, booking.ErrRuleViolation):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, booking.ErrInvalidRequest):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("booking failed", "path", r.URL.Path, "error", err)
		respondError(w, storageStatus(err), "booking failed")
	}
}
