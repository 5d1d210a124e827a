package reminders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bookinglink/bookinglink/internal/appointments"
	"github.com/bookinglink/bookinglink/internal/clinic"
	"github.com/bookinglink/bookinglink/internal/observability/metrics"
	"github.com/bookinglink/bookinglink/pkg/clock"
	"github.com/bookinglink/bookinglink/pkg/logging"
)

// queuePayload is the message body carried through SQS for one job.
type queuePayload struct {
	JobID         string    `json:"jobId"`
	ClinicID      string    `json:"clinicId"`
	AppointmentID string    `json:"appointmentId"`
	Channel       string    `json:"channel"`
	FireAt        time.Time `json:"fireAt"`
}

type jobPersister interface {
	Put(ctx context.Context, job *Job) error
}

// Scheduler creates reminder jobs when an appointment is booked: one job
// per enabled channel, firing at start minus the clinic's lead time. A
// fire time already in the past dispatches immediately, never silently
// skipped.
type Scheduler struct {
	jobs    jobPersister
	queue   queueClient
	metrics *metrics.BookingMetrics
	clock   clock.Clock
	logger  *logging.Logger
}

func NewScheduler(jobs jobPersister, queue queueClient, m *metrics.BookingMetrics, clk clock.Clock, logger *logging.Logger) *Scheduler {
	if jobs == nil || queue == nil {
		panic("reminders: job store and queue required")
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{jobs: jobs, queue: queue, metrics: m, clock: clk, logger: logger}
}

// Schedule enqueues the appointment's reminder jobs. With every channel
// disabled it does nothing.
func (s *Scheduler) Schedule(ctx context.Context, appt *appointments.Appointment, settings *clinic.Settings) error {
	if appt == nil || settings == nil {
		return fmt.Errorf("reminders: appointment and settings required")
	}
	channels := settings.Reminders.Channels()
	if len(channels) == 0 {
		return nil
	}

	lead := settings.Reminders.LeadTimeHours
	if lead <= 0 {
		lead = clinic.DefaultLeadTimeHours
	}
	now := s.clock.Now()
	fireAt := appt.Start.Add(-time.Duration(lead) * time.Hour)
	if fireAt.Before(now) {
		fireAt = now
	}

	for _, channel := range channels {
		job := &Job{
			ClinicID:      appt.ClinicID,
			ID:            uuid.NewString(),
			AppointmentID: appt.ID,
			Channel:       channel,
			FireAt:        fireAt,
			Status:        StatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.jobs.Put(ctx, job); err != nil {
			return err
		}
		body, err := json.Marshal(queuePayload{
			JobID:         job.ID,
			ClinicID:      job.ClinicID,
			AppointmentID: job.AppointmentID,
			Channel:       job.Channel,
			FireAt:        job.FireAt,
		})
		if err != nil {
			return fmt.Errorf("reminders: encode job payload: %w", err)
		}
		if err := s.queue.Send(ctx, string(body), fireAt.Sub(now)); err != nil {
			return err
		}
		s.metrics.ObserveReminder(channel, "scheduled")
		s.logger.Debug("reminders: job scheduled",
			"appointment_id", appt.ID, "channel", channel, "fire_at", fireAt)
	}
	return nil
}
