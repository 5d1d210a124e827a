package appointments

import (
	"time"

	"github.com/bookinglink/bookinglink/internal/interval"
)

// CalendarEntry is one active appointment's footprint on a provider's day.
// Buffers are copied from the appointment type at booking time so conflict
// detection never depends on a later type edit.
type CalendarEntry struct {
	AppointmentID       string    `dynamodbav:"appointmentId" json:"appointmentId"`
	PatientID           string    `dynamodbav:"patientId" json:"patientId"`
	TypeID              string    `dynamodbav:"appointmentTypeId" json:"appointmentTypeId"`
	Start               time.Time `dynamodbav:"startTime" json:"startTime"`
	End                 time.Time `dynamodbav:"endTime" json:"endTime"`
	BufferBeforeMinutes int       `dynamodbav:"bufferBeforeMinutes" json:"bufferBeforeMinutes"`
	BufferAfterMinutes  int       `dynamodbav:"bufferAfterMinutes" json:"bufferAfterMinutes"`
}

// Occupied returns the entry's interval expanded by its buffers.
func (e CalendarEntry) Occupied() interval.Interval {
	iv := interval.Interval{Start: e.Start, End: e.End}
	return iv.Expand(
		time.Duration(e.BufferBeforeMinutes)*time.Minute,
		time.Duration(e.BufferAfterMinutes)*time.Minute,
	)
}

// DayCalendar is the contended document for a provider's day. Every booking
// commit replaces Entries under a version check, so two racing bookings for
// the same day cannot both succeed against the same snapshot.
type DayCalendar struct {
	ClinicID   string          `dynamodbav:"clinicId" json:"clinicId"`
	ProviderID string          `dynamodbav:"providerId" json:"providerId"`
	Date       string          `dynamodbav:"date" json:"date"`
	Version    int64           `dynamodbav:"version" json:"version"`
	Entries    []CalendarEntry `dynamodbav:"entries" json:"entries"`
}

// OccupiedIntervals returns the merged buffered footprint of all entries.
func (c *DayCalendar) OccupiedIntervals() []interval.Interval {
	if c == nil || len(c.Entries) == 0 {
		return nil
	}
	ivs := make([]interval.Interval, 0, len(c.Entries))
	for _, e := range c.Entries {
		ivs = append(ivs, e.Occupied())
	}
	return interval.Merge(ivs)
}

// WithEntry returns a copy of the entry list with the new entry appended.
func (c *DayCalendar) WithEntry(e CalendarEntry) []CalendarEntry {
	out := make([]CalendarEntry, 0, len(c.Entries)+1)
	out = append(out, c.Entries...)
	return append(out, e)
}

// WithoutEntry returns a copy of the entry list with the appointment's
// entry removed. The second return reports whether it was present.
func (c *DayCalendar) WithoutEntry(appointmentID string) ([]CalendarEntry, bool) {
	out := make([]CalendarEntry, 0, len(c.Entries))
	found := false
	for _, e := range c.Entries {
		if e.AppointmentID == appointmentID {
			found = true
			continue
		}
		out = append(out, e)
	}
	return out, found
}
