package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/bookinglink/bookinglink/internal/compliance"
	"github.com/bookinglink/bookinglink/pkg/logging"
)

// AuditSource queries recorded compliance events.
type AuditSource interface {
	QueryEvents(ctx context.Context, clinicID string, start, end time.Time, limit int32) ([]compliance.AuditEvent, error)
}

// AuditHandler serves the audit trail.
type AuditHandler struct {
	source AuditSource
	logger *logging.Logger
}

func NewAuditHandler(source AuditSource, logger *logging.Logger) *AuditHandler {
	if source == nil {
		panic("handlers: audit source cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AuditHandler{source: source, logger: logger}
}

// List handles GET /api/audit/events?from=&to=&limit=. Events come back
// newest first.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	clinic, ok := clinicID(w, r)
	if !ok {
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
	var limit int32
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = int32(n)
	}
	events, err := h.source.QueryEvents(r.Context(), clinic, from, to, limit)
	if err != nil {
		h.logger.Error("audit query failed", "clinic_id", clinic, "error", err)
		respondError(w, storageStatus(err), "failed to query audit events")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events})
}
