// Package clinic holds per-clinic settings: timezone, reminder policy, and
// buffer defaults. These are the source of truth the booking engine reads;
// appointment-type buffers take precedence over the clinic-level defaults.
package clinic

import (
	"fmt"
	"time"
)

// DefaultLeadTimeHours is the reminder lead time applied when a clinic has
// not configured one.
const DefaultLeadTimeHours = 24

// ReminderSettings configures reminder channels and lead time.
type ReminderSettings struct {
	SMSEnabled    bool `dynamodbav:"smsEnabled" json:"smsEnabled"`
	EmailEnabled  bool `dynamodbav:"emailEnabled" json:"emailEnabled"`
	LeadTimeHours int  `dynamodbav:"leadTimeHours" json:"leadTimeHours"`
}

// Channels lists the enabled reminder channels.
func (r ReminderSettings) Channels() []string {
	var out []string
	if r.SMSEnabled {
		out = append(out, "sms")
	}
	if r.EmailEnabled {
		out = append(out, "email")
	}
	return out
}

// Settings is the clinic configuration document.
type Settings struct {
	ClinicID                   string           `dynamodbav:"clinicId" json:"clinicId"`
	Name                       string           `dynamodbav:"name" json:"name"`
	Timezone                   string           `dynamodbav:"timezone" json:"timezone"`
	Reminders                  ReminderSettings `dynamodbav:"reminders" json:"reminders"`
	DefaultBufferBeforeMinutes int              `dynamodbav:"defaultBufferBeforeMinutes" json:"defaultBufferBeforeMinutes"`
	DefaultBufferAfterMinutes  int              `dynamodbav:"defaultBufferAfterMinutes" json:"defaultBufferAfterMinutes"`
	UpdatedAt                  time.Time        `dynamodbav:"updatedAt" json:"updatedAt"`
}

// DefaultSettings returns the configuration used before a clinic saves its
// own: UTC clock, email reminders a day ahead, no buffer defaults.
func DefaultSettings(clinicID string) *Settings {
	return &Settings{
		ClinicID: clinicID,
		Timezone: "UTC",
		Reminders: ReminderSettings{
			EmailEnabled:  true,
			LeadTimeHours: DefaultLeadTimeHours,
		},
	}
}

// Location resolves the clinic's IANA timezone.
func (s *Settings) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("clinic: load timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// Validate enforces the settings invariants.
func (s *Settings) Validate() error {
	if s.ClinicID == "" {
		return fmt.Errorf("clinic: clinicId required")
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	if s.Reminders.LeadTimeHours < 0 {
		return fmt.Errorf("clinic: reminder lead time cannot be negative")
	}
	if s.DefaultBufferBeforeMinutes < 0 || s.DefaultBufferAfterMinutes < 0 {
		return fmt.Errorf("clinic: buffer defaults cannot be negative")
	}
	return nil
}
