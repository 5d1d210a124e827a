package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bookinglink/bookinglink/internal/compliance"
	"github.com/bookinglink/bookinglink/internal/rules"
	"github.com/bookinglink/bookinglink/pkg/logging"
)

// RuleStore persists booking rules.
type RuleStore interface {
	List(ctx context.Context, clinicID string) ([]rules.Rule, error)
	Put(ctx context.Context, r *rules.Rule) error
	Delete(ctx context.Context, clinicID, ruleID string) error
}

// RulesHandler serves booking-rule management.
type RulesHandler struct {
	store  RuleStore
	audit  Auditor
	logger *logging.Logger
}

func NewRulesHandler(store RuleStore, audit Auditor, logger *logging.Logger) *RulesHandler {
	if store == nil {
		panic("handlers: rule store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RulesHandler{store: store, audit: audit, logger: logger}
}

// List handles GET /api/rules.
func (h *RulesHandler) List(w http.ResponseWriter, r *http.Request) {
	clinic, ok := clinicID(w, r)
	if !ok {
		return
	}
	list, err := h.store.List(r.Context(), clinic)
	if err != nil {
		h.logger.Error("list rules failed", "clinic_id", clinic, "error", err)
		respondError(w, storageStatus(err), "failed to list rules")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"rules": list})
}

// Put handles POST /api/rules and PUT /api/rules/{ruleID}. A missing id
// creates a new rule.
func (h *RulesHandler) Put(w http.ResponseWriter, r *http.Request) {
	clinic, ok := clinicID(w, r)
	if !ok {
		return
	}
	var rule rules.Rule
	if !decodeBody(w, r, &rule) {
		return
	}
	rule.ClinicID = clinic
	if ruleID := strings.TrimSpace(chi.URLParam(r, "ruleID")); ruleID != "" {
		rule.ID = ruleID
	}
	created := rule.ID == ""
	if created {
		rule.ID = uuid.NewString()
	}
	if err := rule.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.Put(r.Context(), &rule); err != nil {
		h.logger.Error("save rule failed", "clinic_id", clinic, "rule_id", rule.ID, "error", err)
		respondError(w, storageStatus(err), "failed to save rule")
		return
	}
	h.auditRule(r, clinic, rule.ID, map[string]string{"name": rule.Name})
	if created {
		respondJSON(w, http.StatusCreated, rule)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

// Delete handles DELETE /api/rules/{ruleID}.
func (h *RulesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	clinic, ok := clinicID(w, r)
	if !ok {
		return
	}
	ruleID := strings.TrimSpace(chi.URLParam(r, "ruleID"))
	if ruleID == "" {
		respondError(w, http.StatusBadRequest, "ruleID required")
		return
	}
	if err := h.store.Delete(r.Context(), clinic, ruleID); err != nil {
		h.logger.Error("delete rule failed", "clinic_id", clinic, "rule_id", ruleID, "error", err)
		respondError(w, storageStatus(err), "failed to delete rule")
		return
	}
	h.auditRule(r, clinic, ruleID, map[string]string{"removed": "true"})
	w.WriteHeader(http.StatusNoContent)
}

func (h *RulesHandler) auditRule(r *http.Request, clinic, ruleID string, details map[string]string) {
	if h.audit == nil {
		return
	}
	details["ruleId"] = ruleID
	if err := h.audit.LogEvent(r.Context(), compliance.AuditEvent{
		EventType: compliance.EventRuleUpdated,
		ClinicID:  clinic,
		ActorID:   actorID(r),
		Details:   details,
	}); err != nil {
		h.logger.Warn("audit log failed", "clinic_id", clinic, "rule_id", ruleID, "error", err)
	}
}
