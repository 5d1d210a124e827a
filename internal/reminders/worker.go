package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bookinglink/bookinglink/internal/appointments"
	"github.com/bookinglink/bookinglink/internal/observability/metrics"
	"github.com/bookinglink/bookinglink/internal/storage"
	"github.com/bookinglink/bookinglink/pkg/clock"
	"github.com/bookinglink/bookinglink/pkg/logging"
)

const (
	defaultWorkerCount = 2
	defaultWaitSeconds = 2
	defaultBatchSize   = 5
	maxWaitSeconds     = 20
	maxBatchSize       = 10

	// fireSlack tolerates queue-hop jitter: a job within this much of its
	// fire time dispatches now rather than taking one more hop.
	fireSlack = 30 * time.Second

	retryDelay = time.Minute
)

type jobUpdater interface {
	Get(ctx context.Context, clinicID, jobID string) (*Job, error)
	UpdateStatus(ctx context.Context, clinicID, jobID string, status JobStatus, attempts int, lastError string) error
}

// AppointmentSource resolves appointments and records dispatched
// reminders.
type AppointmentSource interface {
	GetByID(ctx context.Context, clinicID, appointmentID string) (*appointments.Appointment, error)
	SetReminderSent(ctx context.Context, appt *appointments.Appointment) error
}

// Notifier delivers a reminder over one channel.
type Notifier interface {
	SendReminder(ctx context.Context, appt *appointments.Appointment, channel string) error
}

// Worker consumes reminder jobs and dispatches the due ones. Jobs whose
// fire time is still ahead hop back through the queue with the remaining
// delay.
type Worker struct {
	queue    queueClient
	jobs     jobUpdater
	appts    AppointmentSource
	notifier Notifier
	metrics  *metrics.BookingMetrics
	clock    clock.Clock
	logger   *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the SQS long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxBatchSize {
			size = maxBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

func NewWorker(queue queueClient, jobs jobUpdater, appts AppointmentSource, notifier Notifier, m *metrics.BookingMetrics, clk clock.Clock, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if queue == nil {
		panic("reminders: queue cannot be nil")
	}
	if jobs == nil {
		panic("reminders: job store cannot be nil")
	}
	if appts == nil {
		panic("reminders: appointment source cannot be nil")
	}
	if notifier == nil {
		panic("reminders: notifier cannot be nil")
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		queue:    queue,
		jobs:     jobs,
		appts:    appts,
		notifier: notifier,
		metrics:  m,
		clock:    clk,
		logger:   logger,
		cfg:      cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("reminders: worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("reminders: worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("reminders: receive failed", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("reminders: malformed job payload dropped", "error", err)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	now := w.clock.Now()
	if remaining := payload.FireAt.Sub(now); remaining > fireSlack {
		// Not due yet; hop back through the queue with the remaining delay.
		if err := w.queue.Send(ctx, msg.Body, remaining); err != nil {
			w.logger.Error("reminders: re-enqueue failed, leaving message visible",
				"job_id", payload.JobID, "error", err)
			return
		}
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	job, err := w.jobs.Get(ctx, payload.ClinicID, payload.JobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			w.logger.Warn("reminders: job record missing, dropping", "job_id", payload.JobID)
			w.deleteMessage(msg.ReceiptHandle)
			return
		}
		w.logger.Error("reminders: job load failed, will retry", "job_id", payload.JobID, "error", err)
		return
	}
	if job.Status != StatusPending {
		// Already handled by another consumer.
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	w.dispatch(ctx, msg, job)
}

func (w *Worker) dispatch(ctx context.Context, msg queueMessage, job *Job) {
	appt, err := w.appts.GetByID(ctx, job.ClinicID, job.AppointmentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			w.failJob(ctx, job, job.Attempts, "appointment no longer exists")
			w.deleteMessage(msg.ReceiptHandle)
			return
		}
		w.logger.Error("reminders: appointment load failed, will retry",
			"job_id", job.ID, "error", err)
		return
	}
	if !appt.Status.Active() {
		w.failJob(ctx, job, job.Attempts, fmt.Sprintf("appointment is %s", appt.Status))
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	attempts := job.Attempts + 1
	if err := w.notifier.SendReminder(ctx, appt, job.Channel); err != nil {
		w.logger.Warn("reminders: delivery failed",
			"job_id", job.ID, "channel", job.Channel, "attempt", attempts, "error", err)
		if attempts >= MaxAttempts {
			w.failJob(ctx, job, attempts, err.Error())
			w.deleteMessage(msg.ReceiptHandle)
			return
		}
		if uerr := w.jobs.UpdateStatus(ctx, job.ClinicID, job.ID, StatusPending, attempts, err.Error()); uerr != nil {
			w.logger.Error("reminders: attempt record failed", "job_id", job.ID, "error", uerr)
		}
		if qerr := w.queue.Send(ctx, msg.Body, retryDelay); qerr != nil {
			w.logger.Error("reminders: retry enqueue failed, leaving message visible",
				"job_id", job.ID, "error", qerr)
			return
		}
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	if err := w.jobs.UpdateStatus(ctx, job.ClinicID, job.ID, StatusSent, attempts, ""); err != nil {
		w.logger.Error("reminders: sent-status record failed", "job_id", job.ID, "error", err)
	}
	if err := w.appts.SetReminderSent(ctx, appt); err != nil {
		w.logger.Warn("reminders: reminderSent flag update failed",
			"appointment_id", appt.ID, "error", err)
	}
	w.metrics.ObserveReminder(job.Channel, "sent")
	w.logger.Info("reminders: reminder delivered",
		"job_id", job.ID, "appointment_id", appt.ID, "channel", job.Channel)
	w.deleteMessage(msg.ReceiptHandle)
}

func (w *Worker) failJob(ctx context.Context, job *Job, attempts int, reason string) {
	if err := w.jobs.UpdateStatus(ctx, job.ClinicID, job.ID, StatusFailed, attempts, reason); err != nil {
		w.logger.Error("reminders: failed-status record failed", "job_id", job.ID, "error", err)
	}
	w.metrics.ObserveReminder(job.Channel, "failed")
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("reminders: message delete failed", "error", err)
	}
}
