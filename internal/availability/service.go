package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bookinglink/bookinglink/internal/appointments"
	"github.com/bookinglink/bookinglink/internal/clinic"
	"github.com/bookinglink/bookinglink/internal/interval"
	"github.com/bookinglink/bookinglink/internal/schedule"
	"github.com/bookinglink/bookinglink/internal/storage"
	"github.com/bookinglink/bookinglink/pkg/logging"
)

// ScheduleSource provides provider working hours.
type ScheduleSource interface {
	GetWeekly(ctx context.Context, clinicID, providerID string) (*schedule.Weekly, error)
	ListExceptions(ctx context.Context, clinicID, providerID, fromDate, toDate string) (map[string]schedule.Exception, error)
}

// AppointmentSource provides existing bookings and appointment types.
type AppointmentSource interface {
	GetCalendar(ctx context.Context, clinicID, providerID, date string) (*appointments.DayCalendar, error)
	GetType(ctx context.Context, clinicID, typeID string) (*appointments.Type, error)
}

// SettingsSource provides clinic configuration.
type SettingsSource interface {
	Get(ctx context.Context, clinicID string) (*clinic.Settings, error)
}

// Service computes bookable slots for a provider and date range.
type Service struct {
	schedules ScheduleSource
	appts     AppointmentSource
	settings  SettingsSource
	cache     *SlotCache
	logger    *logging.Logger
}

// NewService builds the availability service. The cache is optional.
func NewService(schedules ScheduleSource, appts AppointmentSource, settings SettingsSource, cache *SlotCache, logger *logging.Logger) *Service {
	if schedules == nil || appts == nil || settings == nil {
		panic("availability: schedule, appointment and settings sources required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		schedules: schedules,
		appts:     appts,
		settings:  settings,
		cache:     cache,
		logger:    logger,
	}
}

// Slots computes the bookable slots for (provider, type) over [from, to).
// A provider without a saved schedule simply has no availability.
func (s *Service) Slots(ctx context.Context, clinicID, providerID, typeID string, from, to time.Time) ([]Slot, error) {
	if !from.Before(to) {
		return []Slot{}, nil
	}

	if s.cache != nil {
		if slots, ok := s.cache.Get(ctx, clinicID, providerID, typeID, from, to); ok {
			return slots, nil
		}
	}

	apptType, err := s.appts.GetType(ctx, clinicID, typeID)
	if err != nil {
		return nil, err
	}

	settings, err := s.settings.Get(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	loc, err := settings.Location()
	if err != nil {
		return nil, err
	}

	weekly, err := s.schedules.GetWeekly(ctx, clinicID, providerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return []Slot{}, nil
		}
		return nil, err
	}

	open, occupied, err := s.windowsAndOccupied(ctx, clinicID, providerID, weekly, loc, from, to)
	if err != nil {
		return nil, err
	}

	duration := time.Duration(apptType.DurationMinutes) * time.Minute
	slots := filterRange(Slots(open, occupied, duration), from, to)

	if s.cache != nil {
		s.cache.Set(ctx, clinicID, providerID, typeID, from, to, slots)
	}
	s.logger.Debug("availability: slots computed",
		"clinic_id", clinicID, "provider_id", providerID, "type_id", typeID,
		"from", from, "to", to, "count", len(slots))
	return slots, nil
}

// windowsAndOccupied resolves the open windows and the merged occupied set
// for the range, reading one day calendar per clinic-local date.
func (s *Service) windowsAndOccupied(ctx context.Context, clinicID, providerID string, weekly *schedule.Weekly, loc *time.Location, from, to time.Time) ([]interval.Interval, []interval.Interval, error) {
	fromDate := from.In(loc).Format(schedule.DateLayout)
	toDate := to.In(loc).Format(schedule.DateLayout)
	exceptions, err := s.schedules.ListExceptions(ctx, clinicID, providerID, fromDate, toDate)
	if err != nil {
		return nil, nil, err
	}

	// Windows are resolved over whole clinic-local days so the slot grid
	// anchors at each day window's start even when from falls mid-day.
	// The commit-time revalidation computes the same full-day grid, so a
	// slot emitted here stays bookable; filterRange trims the results back
	// to the caller's bounds.
	openFrom, openTo := dayBounds(from, to, loc)
	open := OpenWindows(weekly, exceptions, loc, openFrom, openTo)

	var occupied []interval.Interval
	day := time.Date(from.In(loc).Year(), from.In(loc).Month(), from.In(loc).Day(), 0, 0, 0, 0, loc)
	for day.Before(to) {
		cal, err := s.appts.GetCalendar(ctx, clinicID, providerID, day.Format(schedule.DateLayout))
		if err != nil {
			return nil, nil, fmt.Errorf("availability: day %s: %w", day.Format(schedule.DateLayout), err)
		}
		occupied = append(occupied, cal.OccupiedIntervals()...)
		day = day.AddDate(0, 0, 1)
	}
	return open, occupied, nil
}

// dayBounds widens [from, to) to whole clinic-local days.
func dayBounds(from, to time.Time, loc *time.Location) (time.Time, time.Time) {
	lf := from.In(loc)
	start := time.Date(lf.Year(), lf.Month(), lf.Day(), 0, 0, 0, 0, loc)
	lt := to.In(loc)
	end := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	if end.Before(to) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end
}

// filterRange keeps the slots lying fully inside [from, to). Never nil.
func filterRange(slots []Slot, from, to time.Time) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if s.Start.Before(from) || s.End.After(to) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Cache exposes the slot cache so the booking service can invalidate it
// after a successful commit.
func (s *Service) Cache() *SlotCache {
	return s.cache
}
