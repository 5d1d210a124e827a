package handlers

import (
	"context"
	"net/http"

	"github.com/bookinglink/bookinglink/internal/compliance"
	"github.com/bookinglink/bookinglink/internal/export"
	"github.com/bookinglink/bookinglink/pkg/logging"
)

// ExportRunner produces appointment extracts.
type ExportRunner interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
	Enabled() bool
}

// ExportHandler serves data-export requests.
type ExportHandler struct {
	exporter ExportRunner
	audit    Auditor
	logger   *logging.Logger
}

func NewExportHandler(exporter ExportRunner, audit Auditor, logger *logging.Logger) *ExportHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ExportHandler{exporter: exporter, audit: audit, logger: logger}
}

// Create handles POST /api/export/appointments.
func (h *ExportHandler) Create(w http.ResponseWriter, r *http.Request) {
	clinic, ok := clinicID(w, r)
	if !ok {
		return
	}
	if h.exporter == nil || !h.exporter.Enabled() {
		respondError(w, http.StatusServiceUnavailable, "export storage not configured")
		return
	}
	var req export.Request
	if !decodeBody(w, r, &req) {
		return
	}
	req.ClinicID = clinic
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.exporter.Export(r.Context(), req)
	if err != nil {
		h.logger.Error("export failed", "clinic_id", clinic, "error", err)
		respondError(w, storageStatus(err), "export failed")
		return
	}
	if h.audit != nil {
		if err := h.audit.LogEvent(r.Context(), compliance.AuditEvent{
			EventType: compliance.EventDataExported,
			ClinicID:  clinic,
			ActorID:   actorID(r),
			Details: map[string]string{
				"key":  res.Key,
				"from": req.From.UTC().Format("2006-01-02"),
				"to":   req.To.UTC().Format("2006-01-02"),
			},
		}); err != nil {
			h.logger.Warn("audit log failed", "clinic_id", clinic, "error", err)
		}
	}
	respondJSON(w, http.StatusCreated, res)
}
