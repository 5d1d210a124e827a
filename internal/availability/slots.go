package availability

import (
	"time"

	"github.com/bookinglink/bookinglink/internal/interval"
)

// Slot is a candidate bookable window of a fixed duration.
type Slot struct {
	Start time.Time `json:"startTime"`
	End   time.Time `json:"endTime"`
}

// Slots derives bookable slots from open windows and the merged occupied
// set (appointments expanded by their buffers). Candidates lie on each open
// window's duration grid (window start + i*duration) and are kept only when
// fully free; a slot ending exactly at the window end is allowed. The
// remainder shorter than the duration is discarded.
func Slots(open []interval.Interval, occupied []interval.Interval, duration time.Duration) []Slot {
	if duration <= 0 {
		return nil
	}
	merged := interval.Merge(occupied)

	var out []Slot
	for _, window := range open {
		free := window.SubtractAll(merged)
		for start := window.Start; !start.Add(duration).After(window.End); start = start.Add(duration) {
			candidate := interval.Interval{Start: start, End: start.Add(duration)}
			for _, run := range free {
				if run.Contains(candidate) {
					out = append(out, Slot{Start: candidate.Start, End: candidate.End})
					break
				}
			}
		}
	}
	return out
}

// Covers reports whether the generated slot set contains a slot starting
// at the given instant with the given duration. Used to re-validate a
// client-chosen slot at commit time.
func Covers(slots []Slot, start time.Time, duration time.Duration) bool {
	end := start.Add(duration)
	for _, s := range slots {
		if s.Start.Equal(start) && s.End.Equal(end) {
			return true
		}
	}
	return false
}
