package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bookinglink/bookinglink/internal/availability"
	"github.com/bookinglink/bookinglink/pkg/logging"
)

// SlotSource computes bookable slots.
type SlotSource interface {
	Slots(ctx context.Context, clinicID, providerID, typeID string, from, to time.Time) ([]availability.Slot, error)
}

// SlotsHandler serves slot queries.
type SlotsHandler struct {
	slots  SlotSource
	logger *logging.Logger
}

func NewSlotsHandler(slots SlotSource, logger *logging.Logger) *SlotsHandler {
	if slots == nil {
		panic("handlers: slot source cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SlotsHandler{slots: slots, logger: logger}
}

type slotsResponse struct {
	ProviderID string              `json:"providerId"`
	TypeID     string              `json:"typeId"`
	From       time.Time           `json:"from"`
	To         time.Time           `json:"to"`
	Slots      []availability.Slot `json:"slots"`
}

// Get handles GET /api/providers/{providerID}/slots?typeId=&from=&to=.
// Timestamps are RFC 3339.
func (h *SlotsHandler) Get(w http.ResponseWriter, r *http.Request) {
	clinic, ok := clinicID(w, r)
	if !ok {
		return
	}
	providerID := strings.TrimSpace(chi.URLParam(r, "providerID"))
	typeID := strings.TrimSpace(r.URL.Query().Get("typeId"))
	if providerID == "" || typeID == "" {
		respondError(w, http.StatusBadRequest, "providerID and typeId required")
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
	if !from.Before(to) {
		respondError(w, http.StatusBadRequest, "from must be before to")
		return
	}
	if to.Sub(from) > 31*24*time.Hour {
		respondError(w, http.StatusBadRequest, "range cannot exceed 31 days")
		return
	}

	slots, err := h.slots.Slots(r.Context(), clinic, providerID, typeID, from, to)
	if err != nil {
		h.logger.Error("slots query failed",
			"clinic_id", clinic, "provider_id", providerID, "error", err)
		respondError(w, storageStatus(err), "failed to compute slots")
		return
	}
	respondJSON(w, http.StatusOK, slotsResponse{
		ProviderID: providerID, TypeID: typeID, From: from, To: to, Slots: slots,
	})
}
