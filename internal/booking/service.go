// Package booking implements the booking transaction manager: it
// revalidates the requested slot against a consistent calendar snapshot,
// evaluates clinic rules, and commits the appointment atomically, retrying
// lost calendar races a bounded number of times.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bookinglink/bookinglink/internal/appointments"
	"github.com/bookinglink/bookinglink/internal/availability"
	"github.com/bookinglink/bookinglink/internal/clinic"
	"github.com/bookinglink/bookinglink/internal/compliance"
	"github.com/bookinglink/bookinglink/internal/interval"
	"github.com/bookinglink/bookinglink/internal/observability/metrics"
	"github.com/bookinglink/bookinglink/internal/rules"
	"github.com/bookinglink/bookinglink/internal/schedule"
	"github.com/bookinglink/bookinglink/internal/storage"
	"github.com/bookinglink/bookinglink/pkg/clock"
	"github.com/bookinglink/bookinglink/pkg/logging"
)

// maxCommitAttempts bounds the CAS retry loop. Each retry reloads the
// calendar and revalidates the slot, so a loss here means real contention.
const maxCommitAttempts = 3

// Repository is the appointment persistence the booking flow needs.
type Repository interface {
	GetType(ctx context.Context, clinicID, typeID string) (*appointments.Type, error)
	GetCalendar(ctx context.Context, clinicID, providerID, date string) (*appointments.DayCalendar, error)
	CommitBooking(ctx context.Context, appt *appointments.Appointment, entry appointments.CalendarEntry, snapshot *appointments.DayCalendar) error
	GetByID(ctx context.Context, clinicID, appointmentID string) (*appointments.Appointment, error)
	UpdateStatus(ctx context.Context, appt *appointments.Appointment, to appointments.Status) error
	ListGroup(ctx context.Context, clinicID, groupID string) ([]appointments.Appointment, error)
}

// ScheduleSource provides provider working hours.
type ScheduleSource interface {
	GetWeekly(ctx context.Context, clinicID, providerID string) (*schedule.Weekly, error)
	ListExceptions(ctx context.Context, clinicID, providerID, fromDate, toDate string) (map[string]schedule.Exception, error)
}

// SettingsSource provides clinic configuration.
type SettingsSource interface {
	Get(ctx context.Context, clinicID string) (*clinic.Settings, error)
}

// RuleChecker evaluates clinic booking rules.
type RuleChecker interface {
	Check(ctx context.Context, b rules.Booking, now time.Time) (*rules.Violation, error)
}

// ReminderScheduler enqueues reminder jobs for a committed appointment.
type ReminderScheduler interface {
	Schedule(ctx context.Context, appt *appointments.Appointment, settings *clinic.Settings) error
}

// CacheInvalidator drops cached slot sets after the calendar changes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, clinicID, providerID string)
}

// Auditor appends audit events. Audit failures never fail the booking.
type Auditor interface {
	LogEvent(ctx context.Context, event compliance.AuditEvent) error
}

// Request is one booking attempt.
type Request struct {
	ClinicID   string    `json:"clinicId"`
	PatientID  string    `json:"patientId"`
	ProviderID string    `json:"providerId"`
	TypeID     string    `json:"appointmentTypeId"`
	Start      time.Time `json:"startTime"`
	Notes      string    `json:"notes,omitempty"`
	ActorID    string    `json:"-"`
}

func (r Request) Validate() error {
	if r.ClinicID == "" || r.PatientID == "" || r.ProviderID == "" || r.TypeID == "" {
		return fmt.Errorf("%w: clinicId, patientId, providerId and appointmentTypeId required", ErrInvalidRequest)
	}
	if r.Start.IsZero() {
		return fmt.Errorf("%w: startTime required", ErrInvalidRequest)
	}
	return nil
}

// OccurrenceResult is the outcome of one occurrence in a recurring series.
type OccurrenceResult struct {
	Index       int                       `json:"index"`
	Start       time.Time                 `json:"startTime"`
	Appointment *appointments.Appointment `json:"appointment,omitempty"`
	Err         error                     `json:"-"`
}

// Service coordinates slot revalidation, rule checks, and the atomic
// commit. Rules, reminders, cache, audit and metrics are optional.
type Service struct {
	repo      Repository
	schedules ScheduleSource
	settings  SettingsSource
	checker   RuleChecker
	reminders ReminderScheduler
	cache     CacheInvalidator
	audit     Auditor
	metrics   *metrics.BookingMetrics
	clock     clock.Clock
	logger    *logging.Logger
	tracer    trace.Tracer
}

func NewService(
	repo Repository,
	schedules ScheduleSource,
	settings SettingsSource,
	checker RuleChecker,
	reminders ReminderScheduler,
	cache CacheInvalidator,
	audit Auditor,
	m *metrics.BookingMetrics,
	clk clock.Clock,
	logger *logging.Logger,
) *Service {
	if repo == nil || schedules == nil || settings == nil {
		panic("booking: repository, schedule and settings sources required")
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:      repo,
		schedules: schedules,
		settings:  settings,
		checker:   checker,
		reminders: reminders,
		cache:     cache,
		audit:     audit,
		metrics:   m,
		clock:     clk,
		logger:    logger,
		tracer:    otel.Tracer("bookinglink/booking"),
	}
}

// Book books a single appointment. The requested start must match a slot
// the generator would produce against the current calendar; the commit is
// one DynamoDB transaction guarded by the calendar version, so at most one
// of N racing requests for the same slot succeeds.
func (s *Service) Book(ctx context.Context, req Request) (*appointments.Appointment, error) {
	return s.book(ctx, req, "")
}

func (s *Service) book(ctx context.Context, req Request, groupID string) (*appointments.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Book", trace.WithAttributes(
		attribute.String("clinic.id", req.ClinicID),
		attribute.String("provider.id", req.ProviderID),
	))
	defer span.End()

	if err := req.Validate(); err != nil {
		s.metrics.ObserveBooking("invalid_request")
		return nil, err
	}

	apptType, err := s.repo.GetType(ctx, req.ClinicID, req.TypeID)
	if err != nil {
		s.metrics.ObserveBooking("error")
		return nil, err
	}
	settings, err := s.settings.Get(ctx, req.ClinicID)
	if err != nil {
		s.metrics.ObserveBooking("error")
		return nil, err
	}
	loc, err := settings.Location()
	if err != nil {
		s.metrics.ObserveBooking("error")
		return nil, err
	}

	weekly, err := s.schedules.GetWeekly(ctx, req.ClinicID, req.ProviderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.metrics.ObserveBooking("invalid_slot")
			return nil, fmt.Errorf("%w: provider has no schedule", ErrInvalidSlot)
		}
		s.metrics.ObserveBooking("error")
		return nil, err
	}

	now := s.clock.Now()
	if s.checker != nil {
		v, err := s.checker.Check(ctx, rules.Booking{
			ClinicID:   req.ClinicID,
			PatientID:  req.PatientID,
			ProviderID: req.ProviderID,
			TypeID:     req.TypeID,
			Start:      req.Start,
			Location:   loc,
		}, now)
		if err != nil {
			s.metrics.ObserveBooking("error")
			return nil, err
		}
		if v != nil {
			s.metrics.ObserveBooking("rule_violation")
			return nil, fmt.Errorf("%w: %s", ErrRuleViolation, v.Reason)
		}
	}

	duration := time.Duration(apptType.DurationMinutes) * time.Minute
	date := req.Start.In(loc).Format(schedule.DateLayout)
	dayStart := startOfDay(req.Start, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	exceptions, err := s.schedules.ListExceptions(ctx, req.ClinicID, req.ProviderID, date, date)
	if err != nil {
		s.metrics.ObserveBooking("error")
		return nil, err
	}
	open := availability.OpenWindows(weekly, exceptions, loc, dayStart, dayEnd)

	bufBefore, bufAfter := effectiveBuffers(apptType, settings)

	commitStart := now
	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		cal, err := s.repo.GetCalendar(ctx, req.ClinicID, req.ProviderID, date)
		if err != nil {
			s.metrics.ObserveBooking("error")
			return nil, err
		}
		occupied := cal.OccupiedIntervals()
		slots := availability.Slots(open, occupied, duration)
		s.metrics.ObserveSlots(len(slots))

		if !availability.Covers(slots, req.Start, duration) {
			return nil, s.classifyMiss(req, duration, bufBefore, bufAfter, occupied)
		}

		appt := s.buildAppointment(req, apptType, date, duration, groupID)
		entry := appointments.CalendarEntry{
			AppointmentID:       appt.ID,
			PatientID:           appt.PatientID,
			TypeID:              appt.TypeID,
			Start:               appt.Start,
			End:                 appt.End,
			BufferBeforeMinutes: bufBefore,
			BufferAfterMinutes:  bufAfter,
		}

		err = s.repo.CommitBooking(ctx, appt, entry, cal)
		if err == nil {
			s.metrics.ObserveBooking("booked")
			s.metrics.ObserveCommitLatency(s.clock.Now().Sub(commitStart).Seconds())
			s.afterCommit(ctx, appt, settings)
			return appt, nil
		}
		if !errors.Is(err, appointments.ErrVersionConflict) {
			s.metrics.ObserveBooking("error")
			return nil, err
		}
		s.logger.Debug("booking: calendar race lost, retrying",
			"clinic_id", req.ClinicID, "provider_id", req.ProviderID,
			"date", date, "attempt", attempt)
	}

	s.metrics.ObserveBooking("conflict")
	return nil, ErrSlotConflict
}

// classifyMiss distinguishes a slot taken by another booking from a slot
// that never existed on the schedule.
func (s *Service) classifyMiss(req Request, duration time.Duration, bufBefore, bufAfter int, occupied []interval.Interval) error {
	requested := interval.Interval{Start: req.Start, End: req.Start.Add(duration)}
	footprint := requested.Expand(
		time.Duration(bufBefore)*time.Minute,
		time.Duration(bufAfter)*time.Minute,
	)
	for _, occ := range occupied {
		if footprint.Overlaps(occ) {
			s.metrics.ObserveBooking("conflict")
			return ErrSlotConflict
		}
	}
	s.metrics.ObserveBooking("invalid_slot")
	return ErrInvalidSlot
}

func (s *Service) buildAppointment(req Request, apptType *appointments.Type, date string, duration time.Duration, groupID string) *appointments.Appointment {
	now := s.clock.Now()
	return &appointments.Appointment{
		ID:                uuid.NewString(),
		ClinicID:          req.ClinicID,
		PatientID:         req.PatientID,
		ProviderID:        req.ProviderID,
		TypeID:            apptType.ID,
		Date:              date,
		Start:             req.Start,
		End:               req.Start.Add(duration),
		Status:            appointments.StatusScheduled,
		Notes:             req.Notes,
		RecurrenceGroupID: groupID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// afterCommit runs the booking side effects. None of them can fail the
// already-committed appointment.
func (s *Service) afterCommit(ctx context.Context, appt *appointments.Appointment, settings *clinic.Settings) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, appt.ClinicID, appt.ProviderID)
	}
	if s.reminders != nil {
		if err := s.reminders.Schedule(ctx, appt, settings); err != nil {
			s.logger.Error("booking: reminder scheduling failed",
				"appointment_id", appt.ID, "error", err)
		}
	}
	s.recordAudit(ctx, compliance.AuditEvent{
		EventType:     compliance.EventAppointmentBooked,
		ClinicID:      appt.ClinicID,
		AppointmentID: appt.ID,
		ProviderID:    appt.ProviderID,
		PatientID:     appt.PatientID,
		Details: map[string]string{
			"start": appt.Start.UTC().Format(time.RFC3339),
			"type":  appt.TypeID,
		},
	})
}

// BookRecurring expands the series and books each occurrence
// independently. A failed occurrence never rolls back earlier successes;
// the caller gets one result per occurrence. The returned group id ties
// the successes together for series-wide operations.
func (s *Service) BookRecurring(ctx context.Context, req Request, rec Recurrence) (string, []OccurrenceResult, error) {
	ctx, span := s.tracer.Start(ctx, "booking.BookRecurring")
	defer span.End()

	if err := req.Validate(); err != nil {
		return "", nil, err
	}
	if err := rec.Validate(); err != nil {
		return "", nil, err
	}
	settings, err := s.settings.Get(ctx, req.ClinicID)
	if err != nil {
		return "", nil, err
	}
	loc, err := settings.Location()
	if err != nil {
		return "", nil, err
	}

	groupID := uuid.NewString()
	starts := Occurrences(rec.Frequency, req.Start, rec.Occurrences, loc)
	results := make([]OccurrenceResult, 0, len(starts))
	booked := 0
	for i, start := range starts {
		occReq := req
		occReq.Start = start
		appt, err := s.book(ctx, occReq, groupID)
		if err == nil {
			booked++
		}
		results = append(results, OccurrenceResult{Index: i, Start: start, Appointment: appt, Err: err})
	}

	s.logger.Info("booking: recurring series booked",
		"clinic_id", req.ClinicID, "group_id", groupID,
		"requested", len(starts), "booked", booked)
	s.recordAudit(ctx, compliance.AuditEvent{
		EventType:  compliance.EventSeriesBooked,
		ClinicID:   req.ClinicID,
		ProviderID: req.ProviderID,
		PatientID:  req.PatientID,
		ActorID:    req.ActorID,
		Details: map[string]string{
			"group_id":  groupID,
			"frequency": string(rec.Frequency),
			"requested": fmt.Sprintf("%d", len(starts)),
			"booked":    fmt.Sprintf("%d", booked),
		},
	})
	return groupID, results, nil
}

// UpdateStatus applies a staff-driven lifecycle transition. Terminal
// transitions free the calendar slot, so cached availability is dropped.
func (s *Service) UpdateStatus(ctx context.Context, clinicID, appointmentID string, to appointments.Status, actorID string) (*appointments.Appointment, error) {
	appt, err := s.repo.GetByID(ctx, clinicID, appointmentID)
	if err != nil {
		return nil, err
	}
	from := appt.Status
	if err := s.repo.UpdateStatus(ctx, appt, to); err != nil {
		return nil, err
	}
	if to.Terminal() && s.cache != nil {
		s.cache.Invalidate(ctx, clinicID, appt.ProviderID)
	}
	eventType := compliance.EventStatusChanged
	if to == appointments.StatusCancelled {
		eventType = compliance.EventAppointmentCancelled
	}
	s.recordAudit(ctx, compliance.AuditEvent{
		EventType:     eventType,
		ClinicID:      clinicID,
		ActorID:       actorID,
		AppointmentID: appt.ID,
		ProviderID:    appt.ProviderID,
		PatientID:     appt.PatientID,
		Details:       map[string]string{"from": string(from), "to": string(to)},
	})
	return appt, nil
}

// CancelSeries cancels the remaining future, still-active appointments in
// a recurrence group. Past or terminal appointments are untouched. Returns
// how many were cancelled.
func (s *Service) CancelSeries(ctx context.Context, clinicID, groupID, actorID string) (int, error) {
	appts, err := s.repo.ListGroup(ctx, clinicID, groupID)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	cancelled := 0
	touched := map[string]bool{}
	for i := range appts {
		a := &appts[i]
		if !a.Status.Active() || !a.Start.After(now) {
			continue
		}
		if err := s.repo.UpdateStatus(ctx, a, appointments.StatusCancelled); err != nil {
			s.logger.Error("booking: series cancel skipped appointment",
				"appointment_id", a.ID, "error", err)
			continue
		}
		cancelled++
		touched[a.ProviderID] = true
	}
	if s.cache != nil {
		for providerID := range touched {
			s.cache.Invalidate(ctx, clinicID, providerID)
		}
	}
	s.recordAudit(ctx, compliance.AuditEvent{
		EventType: compliance.EventSeriesCancelled,
		ClinicID:  clinicID,
		ActorID:   actorID,
		Details:   map[string]string{"group_id": groupID, "cancelled": fmt.Sprintf("%d", cancelled)},
	})
	return cancelled, nil
}

func (s *Service) recordAudit(ctx context.Context, event compliance.AuditEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogEvent(ctx, event); err != nil {
		s.logger.Error("booking: audit write failed", "event_type", event.EventType, "error", err)
	}
}

// effectiveBuffers applies the type's buffers, falling back to the clinic
// defaults only when the type specifies none at all.
func effectiveBuffers(t *appointments.Type, settings *clinic.Settings) (before, after int) {
	if t.BufferBeforeMinutes > 0 || t.BufferAfterMinutes > 0 {
		return t.BufferBeforeMinutes, t.BufferAfterMinutes
	}
	return settings.DefaultBufferBeforeMinutes, settings.DefaultBufferAfterMinutes
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}
