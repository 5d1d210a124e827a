package availability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookinglink/bookinglink/internal/appointments"
	"github.com/bookinglink/bookinglink/internal/clinic"
	"github.com/bookinglink/bookinglink/internal/schedule"
	"github.com/bookinglink/bookinglink/internal/storage"
)

type fakeSchedules struct {
	weekly     *schedule.Weekly
	exceptions map[string]schedule.Exception
}

func (f *fakeSchedules) GetWeekly(_ context.Context, _, _ string) (*schedule.Weekly, error) {
	if f.weekly == nil {
		return nil, fmt.Errorf("schedule: weekly: %w", storage.ErrNotFound)
	}
	return f.weekly, nil
}

func (f *fakeSchedules) ListExceptions(_ context.Context, _, _, _, _ string) (map[string]schedule.Exception, error) {
	return f.exceptions, nil
}

type fakeAppointments struct {
	calendars map[string]*appointments.DayCalendar
	apptType  *appointments.Type
}

func (f *fakeAppointments) GetCalendar(_ context.Context, clinicID, providerID, date string) (*appointments.DayCalendar, error) {
	if cal, ok := f.calendars[date]; ok {
		return cal, nil
	}
	return &appointments.DayCalendar{ClinicID: clinicID, ProviderID: providerID, Date: date}, nil
}

func (f *fakeAppointments) GetType(_ context.Context, _, _ string) (*appointments.Type, error) {
	return f.apptType, nil
}

type fakeSettings struct{}

func (fakeSettings) Get(_ context.Context, clinicID string) (*clinic.Settings, error) {
	return clinic.DefaultSettings(clinicID), nil
}

func newTestService(weekly *schedule.Weekly) *Service {
	return NewService(
		&fakeSchedules{weekly: weekly},
		&fakeAppointments{apptType: &appointments.Type{
			ID: "type-1", ClinicID: "clinic-1", Name: "Consultation", DurationMinutes: 30,
		}},
		fakeSettings{},
		nil,
		nil,
	)
}

// A query starting mid-day must keep the slot grid anchored at the day
// window's start, not at the query bound. Every advertised slot has to
// appear in the full-day slot set the booking commit revalidates against,
// or clients would be offered slots that can never be booked.
func TestServiceSlotsMidDayFromStaysOnDayGrid(t *testing.T) {
	svc := newTestService(weekdaySchedule())
	from := utc(10, 15)
	to := localDay(time.UTC, 3)

	slots, err := svc.Slots(context.Background(), "clinic-1", "prov-1", "type-1", from, to)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	// 09:00-anchored grid resumes at 10:30; nothing starts at the raw bound.
	assert.Equal(t, utc(10, 30), slots[0].Start)
	assert.False(t, Covers(slots, utc(10, 15), 30*time.Minute))

	dayOpen := OpenWindows(weekdaySchedule(), nil, time.UTC, localDay(time.UTC, 2), localDay(time.UTC, 3))
	fullDay := Slots(dayOpen, nil, 30*time.Minute)
	for _, s := range slots {
		assert.True(t, Covers(fullDay, s.Start, 30*time.Minute),
			"advertised slot %s is not in the commit-time slot set", s.Start)
		assert.False(t, s.Start.Before(from), "slot %s precedes the query range", s.Start)
	}
}

// A mid-day upper bound keeps the slot that ends exactly on it and drops
// everything past it.
func TestServiceSlotsMidDayToKeepsBoundarySlot(t *testing.T) {
	svc := newTestService(weekdaySchedule())

	slots, err := svc.Slots(context.Background(), "clinic-1", "prov-1", "type-1", utc(10, 15), utc(11, 30))
	require.NoError(t, err)

	assert.Equal(t, []time.Time{utc(10, 30), utc(11, 0)}, starts(slots))
}

func TestServiceSlotsProviderWithoutSchedule(t *testing.T) {
	svc := newTestService(nil)

	slots, err := svc.Slots(context.Background(), "clinic-1", "prov-1", "type-1", utc(9, 0), utc(17, 0))
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.NotNil(t, slots, "handlers encode an empty list, not null")
}
