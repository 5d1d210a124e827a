package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func mk(t *testing.T, sh, sm, eh, em int) Interval {
	t.Helper()
	iv, err := New(at(sh, sm), at(eh, em))
	require.NoError(t, err)
	return iv
}

func TestNewRejectsInverted(t *testing.T) {
	_, err := New(at(10, 0), at(9, 0))
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = New(at(10, 0), at(10, 0))
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"disjoint", mk(t, 9, 0, 10, 0), mk(t, 11, 0, 12, 0), false},
		{"touching ends do not overlap", mk(t, 9, 0, 10, 0), mk(t, 10, 0, 11, 0), false},
		{"partial", mk(t, 9, 0, 10, 30), mk(t, 10, 0, 11, 0), true},
		{"contained", mk(t, 9, 0, 12, 0), mk(t, 10, 0, 11, 0), true},
		{"identical", mk(t, 9, 0, 10, 0), mk(t, 9, 0, 10, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestSubtract(t *testing.T) {
	t.Run("no overlap returns original", func(t *testing.T) {
		got := mk(t, 9, 0, 10, 0).Subtract(mk(t, 11, 0, 12, 0))
		require.Len(t, got, 1)
		assert.Equal(t, mk(t, 9, 0, 10, 0), got[0])
	})

	t.Run("middle cut yields two pieces", func(t *testing.T) {
		got := mk(t, 9, 0, 17, 0).Subtract(mk(t, 12, 0, 13, 0))
		require.Len(t, got, 2)
		assert.Equal(t, mk(t, 9, 0, 12, 0), got[0])
		assert.Equal(t, mk(t, 13, 0, 17, 0), got[1])
	})

	t.Run("leading overlap trims start", func(t *testing.T) {
		got := mk(t, 9, 0, 12, 0).Subtract(mk(t, 8, 0, 10, 0))
		require.Len(t, got, 1)
		assert.Equal(t, mk(t, 10, 0, 12, 0), got[0])
	})

	t.Run("full cover yields nothing", func(t *testing.T) {
		got := mk(t, 10, 0, 11, 0).Subtract(mk(t, 9, 0, 12, 0))
		assert.Empty(t, got)
	})
}

func TestMerge(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, Merge(nil))
	})

	t.Run("overlapping and touching collapse", func(t *testing.T) {
		got := Merge([]Interval{
			mk(t, 13, 0, 14, 0),
			mk(t, 9, 0, 10, 30),
			mk(t, 10, 0, 11, 0),
			mk(t, 11, 0, 12, 0), // touches previous
		})
		require.Len(t, got, 2)
		assert.Equal(t, mk(t, 9, 0, 12, 0), got[0])
		assert.Equal(t, mk(t, 13, 0, 14, 0), got[1])
	})

	t.Run("input is not mutated", func(t *testing.T) {
		in := []Interval{mk(t, 10, 0, 11, 0), mk(t, 9, 0, 10, 30)}
		_ = Merge(in)
		assert.Equal(t, mk(t, 10, 0, 11, 0), in[0])
	})
}

func TestSubtractAll(t *testing.T) {
	open := mk(t, 9, 0, 17, 0)
	occupied := Merge([]Interval{
		mk(t, 10, 0, 10, 45),
		mk(t, 12, 0, 13, 0),
	})
	got := open.SubtractAll(occupied)
	require.Len(t, got, 3)
	assert.Equal(t, mk(t, 9, 0, 10, 0), got[0])
	assert.Equal(t, mk(t, 10, 45, 12, 0), got[1])
	assert.Equal(t, mk(t, 13, 0, 17, 0), got[2])
}

func TestExpand(t *testing.T) {
	iv := mk(t, 10, 0, 10, 30)
	got := iv.Expand(10*time.Minute, 15*time.Minute)
	assert.Equal(t, at(9, 50), got.Start)
	assert.Equal(t, at(10, 45), got.End)

	// Negative padding is ignored.
	assert.Equal(t, iv, iv.Expand(-time.Minute, -time.Minute))
}

func TestClip(t *testing.T) {
	iv := mk(t, 9, 0, 17, 0)

	got, ok := iv.Clip(at(10, 0), at(12, 0))
	require.True(t, ok)
	assert.Equal(t, mk(t, 10, 0, 12, 0), got)

	_, ok = iv.Clip(at(18, 0), at(19, 0))
	assert.False(t, ok)
}
