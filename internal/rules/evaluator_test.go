package rules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticRules []Rule

func (s staticRules) List(context.Context, string) ([]Rule, error) { return s, nil }

type staticCounter struct {
	count int
	calls []struct{ from, to time.Time }
}

func (c *staticCounter) CountForPatient(_ context.Context, _, _ string, from, to time.Time) (int, error) {
	c.calls = append(c.calls, struct{ from, to time.Time }{from, to})
	return c.count, nil
}

func booking(start time.Time) Booking {
	return Booking{
		ClinicID:   "clinic-1",
		PatientID:  "pat-1",
		ProviderID: "prov-1",
		TypeID:     "type-1",
		Start:      start,
		Location:   time.UTC,
	}
}

func TestEvaluatorMinAdvance(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	e := NewEvaluator(staticRules{{
		ClinicID: "clinic-1", ID: "r1", Name: "Notice", Enabled: true, MinAdvanceMinutes: 120,
	}}, &staticCounter{}, nil)

	v, err := e.Check(context.Background(), booking(now.Add(time.Hour)), now)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "r1", v.RuleID)

	v, err = e.Check(context.Background(), booking(now.Add(3*time.Hour)), now)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestEvaluatorMaxAdvance(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	e := NewEvaluator(staticRules{{
		ClinicID: "clinic-1", ID: "r1", Enabled: true, MaxAdvanceDays: 30,
	}}, &staticCounter{}, nil)

	v, err := e.Check(context.Background(), booking(now.AddDate(0, 0, 45)), now)
	require.NoError(t, err)
	assert.NotNil(t, v)

	v, err = e.Check(context.Background(), booking(now.AddDate(0, 0, 10)), now)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestEvaluatorDisabledAndScopedRules(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	soon := booking(now.Add(time.Minute))

	t.Run("disabled rule is skipped", func(t *testing.T) {
		e := NewEvaluator(staticRules{{
			ClinicID: "clinic-1", ID: "r1", Enabled: false, MinAdvanceMinutes: 120,
		}}, &staticCounter{}, nil)
		v, err := e.Check(context.Background(), soon, now)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("other type is skipped", func(t *testing.T) {
		e := NewEvaluator(staticRules{{
			ClinicID: "clinic-1", ID: "r1", Enabled: true, TypeID: "type-9", MinAdvanceMinutes: 120,
		}}, &staticCounter{}, nil)
		v, err := e.Check(context.Background(), soon, now)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("matching provider scope applies", func(t *testing.T) {
		e := NewEvaluator(staticRules{{
			ClinicID: "clinic-1", ID: "r1", Enabled: true, ProviderID: "prov-1", MinAdvanceMinutes: 120,
		}}, &staticCounter{}, nil)
		v, err := e.Check(context.Background(), soon, now)
		require.NoError(t, err)
		assert.NotNil(t, v)
	})
}

func TestEvaluatorDailyCap(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	counter := &staticCounter{count: 2}
	e := NewEvaluator(staticRules{{
		ClinicID: "clinic-1", ID: "r1", Name: "Daily cap", Enabled: true, MaxPerPatientPerDay: 2,
	}}, counter, nil)

	v, err := e.Check(context.Background(), booking(now.Add(26*time.Hour)), now)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Contains(t, v.Reason, "limit 2")

	// The counted window is the clinic-local day of the requested start.
	require.Len(t, counter.calls, 1)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), counter.calls[0].from)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), counter.calls[0].to)
}

func TestEvaluatorCapUnderLimit(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	e := NewEvaluator(staticRules{{
		ClinicID: "clinic-1", ID: "r1", Enabled: true, MaxPerPatientPerWeek: 3,
	}}, &staticCounter{count: 2}, nil)

	v, err := e.Check(context.Background(), booking(now.AddDate(0, 0, 2)), now)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestWeekWindowStartsMonday(t *testing.T) {
	// 2026-03-05 is a Thursday; the containing week is Mar 2 (Mon) to Mar 9.
	from, to := weekWindow(time.Date(2026, 3, 5, 15, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), to)

	// Sunday belongs to the week that started the previous Monday.
	from, _ = weekWindow(time.Date(2026, 3, 8, 1, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), from)
}

func TestMonthWindow(t *testing.T) {
	from, to := monthWindow(time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), to)
}

func TestRuleValidate(t *testing.T) {
	assert.Error(t, Rule{ID: "r1"}.Validate())
	assert.Error(t, Rule{ClinicID: "c", ID: "r1", MinAdvanceMinutes: -1}.Validate())
	assert.Error(t, Rule{ClinicID: "c", ID: "r1", MaxPerPatientPerDay: -2}.Validate())
	assert.NoError(t, Rule{ClinicID: "c", ID: "r1", MinAdvanceMinutes: 60, MaxPerPatientPerDay: 1}.Validate())
}
