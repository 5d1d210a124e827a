package reminders

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookinglink/bookinglink/internal/appointments"
	"github.com/bookinglink/bookinglink/internal/storage"
	"github.com/bookinglink/bookinglink/pkg/clock"
)

func errNotFound() error { return fmt.Errorf("reminders: %w", storage.ErrNotFound) }

type fakeAppts struct {
	appt         *appointments.Appointment
	reminderSent bool
}

func (f *fakeAppts) GetByID(context.Context, string, string) (*appointments.Appointment, error) {
	if f.appt == nil {
		return nil, errNotFound()
	}
	cp := *f.appt
	return &cp, nil
}

func (f *fakeAppts) SetReminderSent(context.Context, *appointments.Appointment) error {
	f.reminderSent = true
	return nil
}

type fakeNotifier struct {
	sent []string
	err  error
}

func (f *fakeNotifier) SendReminder(_ context.Context, _ *appointments.Appointment, channel string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, channel)
	return nil
}

type workerFixture struct {
	worker   *Worker
	jobs     *memJobs
	queue    *memQueue
	appts    *fakeAppts
	notifier *fakeNotifier
	now      time.Time
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f := &workerFixture{
		jobs:     newMemJobs(),
		queue:    &memQueue{},
		appts:    &fakeAppts{appt: testAppt(now.Add(24 * time.Hour))},
		notifier: &fakeNotifier{},
		now:      now,
	}
	f.worker = NewWorker(f.queue, f.jobs, f.appts, f.notifier, nil, clock.Fixed{T: now}, nil)
	return f
}

func (f *workerFixture) enqueueJob(t *testing.T, fireAt time.Time) queueMessage {
	t.Helper()
	job := &Job{
		ClinicID:      "clinic-1",
		ID:            "job-1",
		AppointmentID: "appt-1",
		Channel:       ChannelEmail,
		FireAt:        fireAt,
		Status:        StatusPending,
	}
	require.NoError(t, f.jobs.Put(context.Background(), job))
	body, err := json.Marshal(queuePayload{
		JobID:         job.ID,
		ClinicID:      job.ClinicID,
		AppointmentID: job.AppointmentID,
		Channel:       job.Channel,
		FireAt:        job.FireAt,
	})
	require.NoError(t, err)
	return queueMessage{ID: "msg-1", Body: string(body), ReceiptHandle: "rh-1"}
}

func TestWorkerDispatchesDueJob(t *testing.T) {
	f := newWorkerFixture(t)
	msg := f.enqueueJob(t, f.now.Add(-time.Minute))

	f.worker.handleMessage(context.Background(), msg)

	assert.Equal(t, []string{ChannelEmail}, f.notifier.sent)
	assert.True(t, f.appts.reminderSent)
	job, err := f.jobs.Get(context.Background(), "clinic-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSent, job.Status)
	assert.Equal(t, 1, job.Attempts)
}

func TestWorkerReenqueuesEarlyJob(t *testing.T) {
	f := newWorkerFixture(t)
	msg := f.enqueueJob(t, f.now.Add(2*time.Hour))

	f.worker.handleMessage(context.Background(), msg)

	assert.Empty(t, f.notifier.sent)
	require.Len(t, f.queue.sent, 1, "job hops back through the queue")
	assert.Equal(t, 2*time.Hour, f.queue.sent[0].delay)
	job, err := f.jobs.Get(context.Background(), "clinic-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status)
}

func TestWorkerRetriesFailedDelivery(t *testing.T) {
	f := newWorkerFixture(t)
	f.notifier.err = fmt.Errorf("smtp unavailable")
	msg := f.enqueueJob(t, f.now.Add(-time.Minute))

	f.worker.handleMessage(context.Background(), msg)

	job, err := f.jobs.Get(context.Background(), "clinic-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status, "stays pending while attempts remain")
	assert.Equal(t, 1, job.Attempts)
	assert.Contains(t, job.LastError, "smtp unavailable")
	require.Len(t, f.queue.sent, 1, "retry re-enqueued")
}

func TestWorkerFailsJobAfterMaxAttempts(t *testing.T) {
	f := newWorkerFixture(t)
	f.notifier.err = fmt.Errorf("smtp unavailable")
	msg := f.enqueueJob(t, f.now.Add(-time.Minute))
	f.jobs.jobs["job-1"].Attempts = MaxAttempts - 1

	f.worker.handleMessage(context.Background(), msg)

	job, err := f.jobs.Get(context.Background(), "clinic-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, MaxAttempts, job.Attempts)
	assert.Empty(t, f.queue.sent, "no further retries")
}

func TestWorkerSkipsInactiveAppointment(t *testing.T) {
	f := newWorkerFixture(t)
	f.appts.appt.Status = appointments.StatusCancelled
	msg := f.enqueueJob(t, f.now.Add(-time.Minute))

	f.worker.handleMessage(context.Background(), msg)

	assert.Empty(t, f.notifier.sent)
	job, err := f.jobs.Get(context.Background(), "clinic-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Contains(t, job.LastError, "cancelled")
}

func TestWorkerDropsAlreadyHandledJob(t *testing.T) {
	f := newWorkerFixture(t)
	msg := f.enqueueJob(t, f.now.Add(-time.Minute))
	f.jobs.jobs["job-1"].Status = StatusSent

	f.worker.handleMessage(context.Background(), msg)

	assert.Empty(t, f.notifier.sent, "idempotent on duplicate delivery")
}

func TestWorkerDropsMalformedPayload(t *testing.T) {
	f := newWorkerFixture(t)
	f.worker.handleMessage(context.Background(), queueMessage{Body: "{not json", ReceiptHandle: "rh"})
	assert.Empty(t, f.notifier.sent)
}
