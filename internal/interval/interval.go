// Package interval provides half-open time interval arithmetic used by the
// availability resolver and slot generator. All operations are pure.
package interval

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidInterval indicates a construction attempt with start >= end.
// It is a contract violation, never a retryable condition.
var ErrInvalidInterval = errors.New("interval: start must be before end")

// Interval is a half-open window [Start, End) in absolute time.
type Interval struct {
	Start time.Time
	End   time.Time
}

// New builds an interval, rejecting inverted or empty windows.
func New(start, end time.Time) (Interval, error) {
	if !start.Before(end) {
		return Interval{}, fmt.Errorf("%w: [%s, %s)", ErrInvalidInterval,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Interval{Start: start, End: end}, nil
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether two half-open intervals share any instant.
// Touching endpoints (a.End == b.Start) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether other lies entirely within iv.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

// Expand grows the interval by before/after padding. Negative padding is
// ignored; callers use this to apply appointment buffers.
func (iv Interval) Expand(before, after time.Duration) Interval {
	out := iv
	if before > 0 {
		out.Start = out.Start.Add(-before)
	}
	if after > 0 {
		out.End = out.End.Add(after)
	}
	return out
}

// Subtract removes other from iv, returning zero, one, or two remaining
// sub-intervals in chronological order.
func (iv Interval) Subtract(other Interval) []Interval {
	if !iv.Overlaps(other) {
		return []Interval{iv}
	}
	var out []Interval
	if iv.Start.Before(other.Start) {
		out = append(out, Interval{Start: iv.Start, End: other.Start})
	}
	if other.End.Before(iv.End) {
		out = append(out, Interval{Start: other.End, End: iv.End})
	}
	return out
}

// Clip restricts iv to the bounds [start, end), returning false when
// nothing remains.
func (iv Interval) Clip(start, end time.Time) (Interval, bool) {
	out := iv
	if out.Start.Before(start) {
		out.Start = start
	}
	if out.End.After(end) {
		out.End = end
	}
	if !out.Start.Before(out.End) {
		return Interval{}, false
	}
	return out, true
}

// Merge sorts the given intervals by start and collapses overlapping or
// touching neighbours into a minimal covering set. The input is not
// modified.
func Merge(ivs []Interval) []Interval {
	if len(ivs) == 0 {
		return nil
	}
	sorted := make([]Interval, len(ivs))
	copy(sorted, ivs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	out := make([]Interval, 0, len(sorted))
	cur := sorted[0]
	for _, next := range sorted[1:] {
		if !next.Start.After(cur.End) {
			if next.End.After(cur.End) {
				cur.End = next.End
			}
			continue
		}
		out = append(out, cur)
		cur = next
	}
	return append(out, cur)
}

// SubtractAll removes every interval in occupied from iv. The occupied set
// must be merged (sorted, non-overlapping); the result is ordered.
func (iv Interval) SubtractAll(occupied []Interval) []Interval {
	remaining := []Interval{iv}
	for _, occ := range occupied {
		var next []Interval
		for _, r := range remaining {
			next = append(next, r.Subtract(occ)...)
		}
		remaining = next
		if len(remaining) == 0 {
			break
		}
	}
	return remaining
}
