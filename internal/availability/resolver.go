// Package availability computes a provider's open time windows from their
// weekly schedule and exceptions, and derives bookable slots by removing
// existing appointments and their buffers. All slot math is deterministic;
// identical inputs always produce identical output.
package availability

import (
	"time"

	"github.com/bookinglink/bookinglink/internal/interval"
	"github.com/bookinglink/bookinglink/internal/schedule"
)

// OpenWindows resolves the provider's open intervals over [from, to) in
// absolute time. Exceptions fully override the weekly entry for their
// date; a break splits the day window in two. Windows that straddle the
// range boundary are clipped; an empty range yields no windows.
func OpenWindows(weekly *schedule.Weekly, exceptions map[string]schedule.Exception, loc *time.Location, from, to time.Time) []interval.Interval {
	if weekly == nil || loc == nil || !from.Before(to) {
		return nil
	}

	var out []interval.Interval
	day := time.Date(from.In(loc).Year(), from.In(loc).Month(), from.In(loc).Day(), 0, 0, 0, 0, loc)
	for day.Before(to) {
		for _, w := range dayWindows(weekly, exceptions, day) {
			if clipped, ok := w.Clip(from, to); ok {
				out = append(out, clipped)
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}

// dayWindows returns the effective open windows for one clinic-local day,
// before clipping. Invalid stored clock values resolve to no windows; the
// store boundary rejects malformed documents before they get here.
func dayWindows(weekly *schedule.Weekly, exceptions map[string]schedule.Exception, day time.Time) []interval.Interval {
	dateKey := day.Format(schedule.DateLayout)

	if ex, ok := exceptions[dateKey]; ok {
		if !ex.IsAvailable {
			return nil
		}
		w, ok := clockWindow(day, ex.Start, ex.End)
		if !ok {
			return nil
		}
		return []interval.Interval{w}
	}

	hours := weekly.Day(day.Weekday())
	if !hours.Enabled {
		return nil
	}
	w, ok := clockWindow(day, hours.Start, hours.End)
	if !ok {
		return nil
	}
	if !hours.HasBreak() {
		return []interval.Interval{w}
	}
	brk, ok := clockWindow(day, hours.BreakStart, hours.BreakEnd)
	if !ok {
		return []interval.Interval{w}
	}
	return w.Subtract(brk)
}

// clockWindow resolves two clinic-local "HH:MM" strings against a calendar
// day into an absolute interval.
func clockWindow(day time.Time, start, end string) (interval.Interval, bool) {
	sm, err := schedule.ParseClock(start)
	if err != nil {
		return interval.Interval{}, false
	}
	em, err := schedule.ParseClock(end)
	if err != nil {
		return interval.Interval{}, false
	}
	if sm >= em {
		return interval.Interval{}, false
	}
	loc := day.Location()
	s := time.Date(day.Year(), day.Month(), day.Day(), sm/60, sm%60, 0, 0, loc)
	e := time.Date(day.Year(), day.Month(), day.Day(), em/60, em%60, 0, 0, loc)
	return interval.Interval{Start: s, End: e}, true
}
