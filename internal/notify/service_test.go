package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookinglink/bookinglink/internal/appointments"
	"github.com/bookinglink/bookinglink/internal/clinic"
	"github.com/bookinglink/bookinglink/internal/reminders"
	"github.com/bookinglink/bookinglink/internal/storage"
)

type capturingEmail struct {
	sent []EmailMessage
	err  error
}

func (c *capturingEmail) Send(_ context.Context, msg EmailMessage) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

type capturingSMS struct {
	sent []SMSMessage
}

func (c *capturingSMS) Send(_ context.Context, msg SMSMessage) error {
	c.sent = append(c.sent, msg)
	return nil
}

type staticContacts struct {
	contact *Contact
}

func (s *staticContacts) PatientContact(context.Context, string, string) (*Contact, error) {
	if s.contact == nil {
		return nil, fmt.Errorf("notify: %w", storage.ErrNotFound)
	}
	return s.contact, nil
}

type staticSettings struct{ settings *clinic.Settings }

func (s *staticSettings) Get(context.Context, string) (*clinic.Settings, error) {
	return s.settings, nil
}

func reminderAppt() *appointments.Appointment {
	start := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	return &appointments.Appointment{
		ID: "appt-1", ClinicID: "clinic-1", PatientID: "pat-1", ProviderID: "prov-1",
		TypeID: "type-1", Date: "2026-03-02", Start: start, End: start.Add(30 * time.Minute),
		Status: appointments.StatusScheduled,
	}
}

func newNotifyService(email EmailSender, sms SMSSender, contact *Contact) *Service {
	settings := clinic.DefaultSettings("clinic-1")
	settings.Name = "Riverside Clinic"
	return NewService(email, sms, &staticContacts{contact: contact}, &staticSettings{settings}, nil)
}

func TestSendReminderEmail(t *testing.T) {
	email := &capturingEmail{}
	svc := newNotifyService(email, nil, &Contact{
		ClinicID: "clinic-1", PatientID: "pat-1", Name: "Jordan", Email: "jordan@example.com",
	})

	err := svc.SendReminder(context.Background(), reminderAppt(), reminders.ChannelEmail)
	require.NoError(t, err)
	require.Len(t, email.sent, 1)
	assert.Equal(t, "jordan@example.com", email.sent[0].To)
	assert.Contains(t, email.sent[0].Body, "Riverside Clinic")
	assert.Contains(t, email.sent[0].Body, "Monday, March 2 at 2:30 PM")
}

func TestSendReminderSMS(t *testing.T) {
	sms := &capturingSMS{}
	svc := newNotifyService(nil, sms, &Contact{
		ClinicID: "clinic-1", PatientID: "pat-1", Name: "Jordan", Phone: "+15551234567",
	})

	err := svc.SendReminder(context.Background(), reminderAppt(), reminders.ChannelSMS)
	require.NoError(t, err)
	require.Len(t, sms.sent, 1)
	assert.Equal(t, "+15551234567", sms.sent[0].To)
}

func TestSendReminderMissingContactDetail(t *testing.T) {
	svc := newNotifyService(&capturingEmail{}, &capturingSMS{}, &Contact{
		ClinicID: "clinic-1", PatientID: "pat-1", Name: "Jordan", Phone: "+15551234567",
	})

	err := svc.SendReminder(context.Background(), reminderAppt(), reminders.ChannelEmail)
	assert.Error(t, err, "email channel without an email address fails the job")
}

func TestSendReminderUnknownChannel(t *testing.T) {
	svc := newNotifyService(nil, nil, &Contact{ClinicID: "clinic-1", PatientID: "pat-1"})
	err := svc.SendReminder(context.Background(), reminderAppt(), "carrier-pigeon")
	assert.Error(t, err)
}

func TestSendReminderUnknownPatient(t *testing.T) {
	svc := newNotifyService(nil, nil, nil)
	err := svc.SendReminder(context.Background(), reminderAppt(), reminders.ChannelEmail)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSendCancellationUsesAllChannels(t *testing.T) {
	email := &capturingEmail{}
	sms := &capturingSMS{}
	svc := newNotifyService(email, sms, &Contact{
		ClinicID: "clinic-1", PatientID: "pat-1", Name: "Jordan",
		Email: "jordan@example.com", Phone: "+15551234567",
	})

	err := svc.SendCancellation(context.Background(), reminderAppt())
	require.NoError(t, err)
	assert.Len(t, email.sent, 1)
	assert.Len(t, sms.sent, 1)
}

func TestSendCancellationPartialDeliveryIsSuccess(t *testing.T) {
	email := &capturingEmail{err: fmt.Errorf("smtp down")}
	sms := &capturingSMS{}
	svc := newNotifyService(email, sms, &Contact{
		ClinicID: "clinic-1", PatientID: "pat-1",
		Email: "jordan@example.com", Phone: "+15551234567",
	})

	err := svc.SendCancellation(context.Background(), reminderAppt())
	assert.NoError(t, err, "one delivered channel is enough")
	assert.Len(t, sms.sent, 1)
}
