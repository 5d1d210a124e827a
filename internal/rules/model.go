// Package rules implements clinic-configurable booking policies: advance
// booking limits and per-patient frequency caps, evaluated before an
// appointment commits.
package rules

import "fmt"

// Rule is one booking policy. Zero-valued limits are inactive; a rule
// with TypeID or ProviderID set applies only to that type or provider.
type Rule struct {
	ClinicID   string `dynamodbav:"clinicId" json:"clinicId"`
	ID         string `dynamodbav:"id" json:"id"`
	Name       string `dynamodbav:"name" json:"name"`
	Enabled    bool   `dynamodbav:"enabled" json:"enabled"`
	TypeID     string `dynamodbav:"appointmentTypeId,omitempty" json:"appointmentTypeId,omitempty"`
	ProviderID string `dynamodbav:"providerId,omitempty" json:"providerId,omitempty"`

	// Advance limits. Minutes for the lower bound, days for the upper.
	MinAdvanceMinutes int `dynamodbav:"minAdvanceMinutes,omitempty" json:"minAdvanceMinutes,omitempty"`
	MaxAdvanceDays    int `dynamodbav:"maxAdvanceDays,omitempty" json:"maxAdvanceDays,omitempty"`

	// Per-patient caps over clinic-local windows.
	MaxPerPatientPerDay   int `dynamodbav:"maxPerPatientPerDay,omitempty" json:"maxPerPatientPerDay,omitempty"`
	MaxPerPatientPerWeek  int `dynamodbav:"maxPerPatientPerWeek,omitempty" json:"maxPerPatientPerWeek,omitempty"`
	MaxPerPatientPerMonth int `dynamodbav:"maxPerPatientPerMonth,omitempty" json:"maxPerPatientPerMonth,omitempty"`
}

// AppliesTo reports whether the rule constrains the given booking target.
func (r Rule) AppliesTo(typeID, providerID string) bool {
	if !r.Enabled {
		return false
	}
	if r.TypeID != "" && r.TypeID != typeID {
		return false
	}
	if r.ProviderID != "" && r.ProviderID != providerID {
		return false
	}
	return true
}

func (r Rule) Validate() error {
	if r.ClinicID == "" || r.ID == "" {
		return fmt.Errorf("rules: clinicId and id required")
	}
	if r.MinAdvanceMinutes < 0 || r.MaxAdvanceDays < 0 {
		return fmt.Errorf("rules: advance limits cannot be negative")
	}
	if r.MaxPerPatientPerDay < 0 || r.MaxPerPatientPerWeek < 0 || r.MaxPerPatientPerMonth < 0 {
		return fmt.Errorf("rules: patient caps cannot be negative")
	}
	return nil
}
