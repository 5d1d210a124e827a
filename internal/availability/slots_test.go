package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookinglink/bookinglink/internal/interval"
)

func utc(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

func win(sh, sm, eh, em int) interval.Interval {
	return interval.Interval{Start: utc(sh, sm), End: utc(eh, em)}
}

func starts(slots []Slot) []time.Time {
	out := make([]time.Time, len(slots))
	for i, s := range slots {
		out[i] = s.Start
	}
	return out
}

// Monday 09:00-17:00 with a 12:00-13:00 break, 30-minute type, no
// existing appointments: 6 slots before the break, 8 after, 14 total.
func TestSlotsFullDayWithBreak(t *testing.T) {
	open := []interval.Interval{win(9, 0, 12, 0), win(13, 0, 17, 0)}

	slots := Slots(open, nil, 30*time.Minute)
	require.Len(t, slots, 14)

	assert.Equal(t, utc(9, 0), slots[0].Start)
	assert.Equal(t, utc(11, 30), slots[5].Start)
	assert.Equal(t, utc(13, 0), slots[6].Start)
	assert.Equal(t, utc(16, 30), slots[13].Start)

	for _, s := range slots {
		brk := win(12, 0, 13, 0)
		assert.False(t, brk.Overlaps(interval.Interval{Start: s.Start, End: s.End}),
			"slot %s falls inside the break", s.Start)
	}
}

// Existing 10:00-10:30 appointment with a 15-minute buffer-after occupies
// 10:00-10:45 on a day open 09:00-12:00. The 30-minute grid keeps 09:00 and
// 09:30, drops 10:00 and 10:30, and resumes at 11:00; 11:30 ends exactly at
// the window end and is allowed.
func TestSlotsRespectBufferedAppointment(t *testing.T) {
	open := []interval.Interval{win(9, 0, 12, 0)}
	occupied := []interval.Interval{win(10, 0, 10, 45)}

	slots := Slots(open, occupied, 30*time.Minute)
	assert.Equal(t, []time.Time{utc(9, 0), utc(9, 30), utc(11, 0), utc(11, 30)}, starts(slots))
}

func TestSlotsNeverOverlapOccupied(t *testing.T) {
	open := []interval.Interval{win(8, 0, 18, 0)}
	occupied := []interval.Interval{
		win(8, 10, 9, 5),
		win(11, 0, 11, 30),
		win(11, 15, 12, 45), // overlaps previous, exercises merge
		win(17, 50, 18, 30),
	}

	slots := Slots(open, occupied, 45*time.Minute)
	require.NotEmpty(t, slots)
	for _, s := range slots {
		sv := interval.Interval{Start: s.Start, End: s.End}
		for _, occ := range occupied {
			assert.False(t, sv.Overlaps(occ), "slot %s overlaps occupied %s", s.Start, occ.Start)
		}
	}
}

func TestSlotsIdempotent(t *testing.T) {
	open := []interval.Interval{win(9, 0, 12, 0), win(13, 0, 17, 0)}
	occupied := []interval.Interval{win(9, 45, 10, 20), win(14, 0, 15, 10)}

	a := Slots(open, occupied, 30*time.Minute)
	b := Slots(open, occupied, 30*time.Minute)
	assert.Equal(t, a, b)
}

func TestSlotsNoCapacity(t *testing.T) {
	t.Run("fully occupied day", func(t *testing.T) {
		slots := Slots([]interval.Interval{win(9, 0, 12, 0)}, []interval.Interval{win(8, 0, 13, 0)}, 30*time.Minute)
		assert.Empty(t, slots)
	})

	t.Run("window shorter than duration", func(t *testing.T) {
		slots := Slots([]interval.Interval{win(9, 0, 9, 20)}, nil, 30*time.Minute)
		assert.Empty(t, slots)
	})

	t.Run("no windows", func(t *testing.T) {
		assert.Empty(t, Slots(nil, nil, 30*time.Minute))
	})

	t.Run("nonpositive duration", func(t *testing.T) {
		assert.Empty(t, Slots([]interval.Interval{win(9, 0, 12, 0)}, nil, 0))
	})
}

func TestSlotsDiscardsShortRemainder(t *testing.T) {
	// 09:00-10:15 with 30-minute slots: 09:00 and 09:30 fit, the 15-minute
	// remainder after 10:00 does not.
	slots := Slots([]interval.Interval{win(9, 0, 10, 15)}, nil, 30*time.Minute)
	assert.Equal(t, []time.Time{utc(9, 0), utc(9, 30)}, starts(slots))
}

func TestCovers(t *testing.T) {
	slots := Slots([]interval.Interval{win(9, 0, 12, 0)}, nil, 30*time.Minute)
	assert.True(t, Covers(slots, utc(9, 30), 30*time.Minute))
	assert.False(t, Covers(slots, utc(9, 45), 30*time.Minute))
	assert.False(t, Covers(slots, utc(9, 30), time.Hour))
}
