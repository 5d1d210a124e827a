// Package reminders schedules and dispatches appointment reminders. The
// booking service enqueues one job per enabled channel at commit time;
// the worker delivers each job when its fire time arrives.
package reminders

import (
	"fmt"
	"time"
)

// JobStatus is the reminder job lifecycle state.
type JobStatus string

const (
	StatusPending JobStatus = "pending"
	StatusSent    JobStatus = "sent"
	StatusFailed  JobStatus = "failed"
)

// Channel names a delivery channel.
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// MaxAttempts bounds delivery retries per job.
const MaxAttempts = 3

// Job is one scheduled reminder for one channel.
type Job struct {
	ClinicID      string    `dynamodbav:"clinicId" json:"clinicId"`
	ID            string    `dynamodbav:"id" json:"id"`
	AppointmentID string    `dynamodbav:"appointmentId" json:"appointmentId"`
	Channel       string    `dynamodbav:"channel" json:"channel"`
	FireAt        time.Time `dynamodbav:"fireAt" json:"fireAt"`
	Status        JobStatus `dynamodbav:"status" json:"status"`
	Attempts      int       `dynamodbav:"attempts" json:"attempts"`
	LastError     string    `dynamodbav:"lastError,omitempty" json:"lastError,omitempty"`
	CreatedAt     time.Time `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `dynamodbav:"updatedAt" json:"updatedAt"`
}

func (j Job) Validate() error {
	if j.ClinicID == "" || j.ID == "" || j.AppointmentID == "" {
		return fmt.Errorf("reminders: clinicId, id and appointmentId required")
	}
	if j.Channel != ChannelSMS && j.Channel != ChannelEmail {
		return fmt.Errorf("reminders: unknown channel %q", j.Channel)
	}
	if j.FireAt.IsZero() {
		return fmt.Errorf("reminders: fireAt required")
	}
	return nil
}
