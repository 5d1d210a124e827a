// Package schedule models provider working hours: a recurring weekly
// schedule plus date-bound exceptions that fully override it.
package schedule

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for exception dates (clinic-local days).
const DateLayout = "2006-01-02"

// DayHours is one weekday entry of a provider's weekly schedule. Times are
// clinic-local "HH:MM" strings; absolute resolution happens in the
// availability resolver.
type DayHours struct {
	Enabled    bool   `dynamodbav:"enabled" json:"enabled"`
	Start      string `dynamodbav:"startTime" json:"startTime"`
	End        string `dynamodbav:"endTime" json:"endTime"`
	BreakStart string `dynamodbav:"breakStart,omitempty" json:"breakStart,omitempty"`
	BreakEnd   string `dynamodbav:"breakEnd,omitempty" json:"breakEnd,omitempty"`
}

// HasBreak reports whether the entry carries a mid-day break.
func (d DayHours) HasBreak() bool {
	return d.BreakStart != "" && d.BreakEnd != ""
}

// Validate enforces the weekly-schedule invariants for an enabled day:
// start < end, and when a break is present, start <= breakStart < breakEnd <= end.
func (d DayHours) Validate() error {
	if !d.Enabled {
		return nil
	}
	start, err := ParseClock(d.Start)
	if err != nil {
		return fmt.Errorf("schedule: start time: %w", err)
	}
	end, err := ParseClock(d.End)
	if err != nil {
		return fmt.Errorf("schedule: end time: %w", err)
	}
	if start >= end {
		return fmt.Errorf("schedule: start %q must be before end %q", d.Start, d.End)
	}
	if d.BreakStart == "" && d.BreakEnd == "" {
		return nil
	}
	if d.BreakStart == "" || d.BreakEnd == "" {
		return fmt.Errorf("schedule: break requires both start and end")
	}
	bs, err := ParseClock(d.BreakStart)
	if err != nil {
		return fmt.Errorf("schedule: break start: %w", err)
	}
	be, err := ParseClock(d.BreakEnd)
	if err != nil {
		return fmt.Errorf("schedule: break end: %w", err)
	}
	if bs < start || bs >= be || be > end {
		return fmt.Errorf("schedule: break %q-%q must sit inside working hours %q-%q",
			d.BreakStart, d.BreakEnd, d.Start, d.End)
	}
	return nil
}

// Weekly is a provider's recurring weekly schedule, one entry per weekday.
type Weekly struct {
	ClinicID   string    `dynamodbav:"clinicId" json:"clinicId"`
	ProviderID string    `dynamodbav:"providerId" json:"providerId"`
	Monday     DayHours  `dynamodbav:"monday" json:"monday"`
	Tuesday    DayHours  `dynamodbav:"tuesday" json:"tuesday"`
	Wednesday  DayHours  `dynamodbav:"wednesday" json:"wednesday"`
	Thursday   DayHours  `dynamodbav:"thursday" json:"thursday"`
	Friday     DayHours  `dynamodbav:"friday" json:"friday"`
	Saturday   DayHours  `dynamodbav:"saturday" json:"saturday"`
	Sunday     DayHours  `dynamodbav:"sunday" json:"sunday"`
	UpdatedAt  time.Time `dynamodbav:"updatedAt" json:"updatedAt"`
}

// Day returns the entry for the given weekday.
func (w Weekly) Day(d time.Weekday) DayHours {
	switch d {
	case time.Monday:
		return w.Monday
	case time.Tuesday:
		return w.Tuesday
	case time.Wednesday:
		return w.Wednesday
	case time.Thursday:
		return w.Thursday
	case time.Friday:
		return w.Friday
	case time.Saturday:
		return w.Saturday
	}
	return w.Sunday
}

// Validate checks every weekday entry.
func (w Weekly) Validate() error {
	if w.ClinicID == "" || w.ProviderID == "" {
		return fmt.Errorf("schedule: clinicId and providerId required")
	}
	days := map[string]DayHours{
		"monday": w.Monday, "tuesday": w.Tuesday, "wednesday": w.Wednesday,
		"thursday": w.Thursday, "friday": w.Friday, "saturday": w.Saturday,
		"sunday": w.Sunday,
	}
	for name, d := range days {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Exception overrides the weekly entry for a single clinic-local date:
// either the provider is unavailable, or works an explicit override window.
type Exception struct {
	ClinicID    string    `dynamodbav:"clinicId" json:"clinicId"`
	ProviderID  string    `dynamodbav:"providerId" json:"providerId"`
	Date        string    `dynamodbav:"date" json:"date"`
	IsAvailable bool      `dynamodbav:"isAvailable" json:"isAvailable"`
	Start       string    `dynamodbav:"startTime,omitempty" json:"startTime,omitempty"`
	End         string    `dynamodbav:"endTime,omitempty" json:"endTime,omitempty"`
	Reason      string    `dynamodbav:"reason,omitempty" json:"reason,omitempty"`
	UpdatedAt   time.Time `dynamodbav:"updatedAt" json:"updatedAt"`
}

// Validate enforces the exception invariants.
func (e Exception) Validate() error {
	if e.ClinicID == "" || e.ProviderID == "" {
		return fmt.Errorf("schedule: clinicId and providerId required")
	}
	if _, err := time.Parse(DateLayout, e.Date); err != nil {
		return fmt.Errorf("schedule: exception date %q: %w", e.Date, err)
	}
	if !e.IsAvailable {
		return nil
	}
	start, err := ParseClock(e.Start)
	if err != nil {
		return fmt.Errorf("schedule: override start: %w", err)
	}
	end, err := ParseClock(e.End)
	if err != nil {
		return fmt.Errorf("schedule: override end: %w", err)
	}
	if start >= end {
		return fmt.Errorf("schedule: override start %q must be before end %q", e.Start, e.End)
	}
	return nil
}

// ParseClock converts an "HH:MM" string to minutes past midnight.
func ParseClock(v string) (int, error) {
	if v == "" {
		return 0, fmt.Errorf("empty clock value")
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
