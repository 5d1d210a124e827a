// Package appointments holds the booked-appointment model and its
// DynamoDB persistence, including the provider-day calendar items whose
// version-checked writes make booking commits atomic.
package appointments

import (
	"fmt"
	"time"
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no-show"
)

// Active reports whether the appointment still occupies provider time.
// Only active appointments participate in conflict detection.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// CanTransition reports whether the staff-driven transition s -> to is legal.
func (s Status) CanTransition(to Status) bool {
	if !to.Valid() || s.Terminal() || to == StatusScheduled {
		return false
	}
	if s == StatusConfirmed && to == StatusConfirmed {
		return false
	}
	return true
}

// Appointment is the booked unit. Patient, provider, and type are weak
// references; readers must tolerate the referenced documents being gone.
type Appointment struct {
	ID                string    `dynamodbav:"id" json:"id"`
	ClinicID          string    `dynamodbav:"clinicId" json:"clinicId"`
	PatientID         string    `dynamodbav:"patientId" json:"patientId"`
	ProviderID        string    `dynamodbav:"providerId" json:"providerId"`
	TypeID            string    `dynamodbav:"appointmentTypeId" json:"appointmentTypeId"`
	Date              string    `dynamodbav:"date" json:"date"` // clinic-local day, keys the calendar item
	Start             time.Time `dynamodbav:"startTime" json:"startTime"`
	End               time.Time `dynamodbav:"endTime" json:"endTime"`
	Status            Status    `dynamodbav:"status" json:"status"`
	Notes             string    `dynamodbav:"notes,omitempty" json:"notes,omitempty"`
	ReminderSent      bool      `dynamodbav:"reminderSent" json:"reminderSent"`
	RecurrenceGroupID string    `dynamodbav:"recurrenceGroupId,omitempty" json:"recurrenceGroupId,omitempty"`
	CreatedAt         time.Time `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time `dynamodbav:"updatedAt" json:"updatedAt"`
}

// Validate enforces the appointment document invariants.
func (a Appointment) Validate() error {
	if a.ID == "" || a.ClinicID == "" || a.PatientID == "" || a.ProviderID == "" || a.TypeID == "" {
		return fmt.Errorf("appointments: id, clinicId, patientId, providerId and appointmentTypeId required")
	}
	if a.Date == "" {
		return fmt.Errorf("appointments: date required")
	}
	if !a.Start.Before(a.End) {
		return fmt.Errorf("appointments: startTime must be before endTime")
	}
	if !a.Status.Valid() {
		return fmt.Errorf("appointments: unknown status %q", a.Status)
	}
	return nil
}
