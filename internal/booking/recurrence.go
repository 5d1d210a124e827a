package booking

import (
	"fmt"
	"time"
)

// Frequency is the repeat cadence of a recurring booking.
type Frequency string

const (
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	}
	return false
}

// MaxOccurrences caps a recurring series to one year of weekly visits.
const MaxOccurrences = 52

// Recurrence describes a recurring booking request. Occurrences counts the
// total appointments in the series, the first included.
type Recurrence struct {
	Frequency   Frequency `json:"frequency"`
	Occurrences int       `json:"occurrences"`
}

func (r Recurrence) Validate() error {
	if !r.Frequency.Valid() {
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidRequest, r.Frequency)
	}
	if r.Occurrences < 2 || r.Occurrences > MaxOccurrences {
		return fmt.Errorf("%w: occurrences must be between 2 and %d, got %d", ErrInvalidRequest, MaxOccurrences, r.Occurrences)
	}
	return nil
}

// Occurrences expands the series start times in clinic-local time. Weekly
// and biweekly steps keep the local wall clock across DST transitions.
// Monthly occurrences land on the first start's day-of-month, clamped to
// the target month's length (Jan 31 -> Feb 28 -> Mar 31).
func Occurrences(f Frequency, first time.Time, count int, loc *time.Location) []time.Time {
	if count <= 0 {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	lt := first.In(loc)
	out := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		switch f {
		case FrequencyWeekly:
			out = append(out, lt.AddDate(0, 0, 7*i))
		case FrequencyBiweekly:
			out = append(out, lt.AddDate(0, 0, 14*i))
		case FrequencyMonthly:
			out = append(out, addMonthsClamped(lt, i))
		default:
			return nil
		}
	}
	return out
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	anchor := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysInMonth(anchor.Year(), anchor.Month()); d > last {
		d = last
	}
	return time.Date(anchor.Year(), anchor.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
