package appointments

import "fmt"

// Type is a clinic-owned appointment type. Duration and buffers are
// immutable once appointments reference the type; name and color are
// display attributes and may change freely.
type Type struct {
	ClinicID            string `dynamodbav:"clinicId" json:"clinicId"`
	ID                  string `dynamodbav:"id" json:"id"`
	Name                string `dynamodbav:"name" json:"name"`
	DurationMinutes     int    `dynamodbav:"durationMinutes" json:"durationMinutes"`
	BufferBeforeMinutes int    `dynamodbav:"bufferBeforeMinutes" json:"bufferBeforeMinutes"`
	BufferAfterMinutes  int    `dynamodbav:"bufferAfterMinutes" json:"bufferAfterMinutes"`
	Color               string `dynamodbav:"color,omitempty" json:"color,omitempty"`
	PriceCents          int    `dynamodbav:"priceCents" json:"priceCents"`
}

// Validate enforces the appointment-type invariants.
func (t Type) Validate() error {
	if t.ClinicID == "" || t.ID == "" || t.Name == "" {
		return fmt.Errorf("appointments: type clinicId, id and name required")
	}
	if t.DurationMinutes <= 0 {
		return fmt.Errorf("appointments: type duration must be positive, got %d", t.DurationMinutes)
	}
	if t.BufferBeforeMinutes < 0 || t.BufferAfterMinutes < 0 {
		return fmt.Errorf("appointments: type buffers cannot be negative")
	}
	if t.PriceCents < 0 {
		return fmt.Errorf("appointments: type price cannot be negative")
	}
	return nil
}
