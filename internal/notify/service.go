package notify

import (
	"context"
	"fmt"

	"github.com/bookinglink/bookinglink/internal/appointments"
	"github.com/bookinglink/bookinglink/internal/clinic"
	"github.com/bookinglink/bookinglink/internal/reminders"
	"github.com/bookinglink/bookinglink/pkg/logging"
)

// SettingsSource provides clinic configuration for message formatting.
type SettingsSource interface {
	Get(ctx context.Context, clinicID string) (*clinic.Settings, error)
}

// Service formats and delivers appointment notifications. It implements
// the reminder worker's Notifier.
type Service struct {
	email    EmailSender
	sms      SMSSender
	contacts ContactSource
	settings SettingsSource
	logger   *logging.Logger
}

func NewService(email EmailSender, sms SMSSender, contacts ContactSource, settings SettingsSource, logger *logging.Logger) *Service {
	if contacts == nil || settings == nil {
		panic("notify: contact and settings sources required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = NewStubEmailSender(logger)
	}
	if sms == nil {
		sms = NewStubSMSSender(logger)
	}
	return &Service{email: email, sms: sms, contacts: contacts, settings: settings, logger: logger}
}

// SendReminder delivers a reminder for the appointment over one channel.
func (s *Service) SendReminder(ctx context.Context, appt *appointments.Appointment, channel string) error {
	if appt == nil {
		return fmt.Errorf("notify: appointment required")
	}
	contact, err := s.contacts.PatientContact(ctx, appt.ClinicID, appt.PatientID)
	if err != nil {
		return err
	}
	settings, err := s.settings.Get(ctx, appt.ClinicID)
	if err != nil {
		return err
	}
	loc, err := settings.Location()
	if err != nil {
		return err
	}
	when := appt.Start.In(loc).Format("Monday, January 2 at 3:04 PM")
	clinicName := settings.Name
	if clinicName == "" {
		clinicName = "your clinic"
	}

	switch channel {
	case reminders.ChannelEmail:
		if contact.Email == "" {
			return fmt.Errorf("notify: patient %s has no email address", appt.PatientID)
		}
		return s.email.Send(ctx, EmailMessage{
			To:      contact.Email,
			ToName:  contact.Name,
			Subject: fmt.Sprintf("Appointment reminder: %s", when),
			Body: fmt.Sprintf("Hi %s,\n\nThis is a reminder of your upcoming appointment at %s on %s.\n\nIf you need to reschedule, please contact the clinic.",
				contact.Name, clinicName, when),
		})
	case reminders.ChannelSMS:
		if contact.Phone == "" {
			return fmt.Errorf("notify: patient %s has no phone number", appt.PatientID)
		}
		return s.sms.Send(ctx, SMSMessage{
			To:   contact.Phone,
			Body: fmt.Sprintf("Reminder: your appointment at %s is on %s.", clinicName, when),
		})
	default:
		return fmt.Errorf("notify: unknown channel %q", channel)
	}
}

// SendCancellation tells the patient a clinic-side cancellation happened,
// over whichever channels the contact supports.
func (s *Service) SendCancellation(ctx context.Context, appt *appointments.Appointment) error {
	if appt == nil {
		return fmt.Errorf("notify: appointment required")
	}
	contact, err := s.contacts.PatientContact(ctx, appt.ClinicID, appt.PatientID)
	if err != nil {
		return err
	}
	settings, err := s.settings.Get(ctx, appt.ClinicID)
	if err != nil {
		return err
	}
	loc, err := settings.Location()
	if err != nil {
		return err
	}
	when := appt.Start.In(loc).Format("Monday, January 2 at 3:04 PM")

	var lastErr error
	delivered := false
	if contact.Email != "" {
		err := s.email.Send(ctx, EmailMessage{
			To:      contact.Email,
			ToName:  contact.Name,
			Subject: "Appointment cancelled",
			Body:    fmt.Sprintf("Hi %s,\n\nYour appointment on %s has been cancelled.", contact.Name, when),
		})
		if err != nil {
			lastErr = err
		} else {
			delivered = true
		}
	}
	if contact.Phone != "" {
		err := s.sms.Send(ctx, SMSMessage{
			To:   contact.Phone,
			Body: fmt.Sprintf("Your appointment on %s has been cancelled.", when),
		})
		if err != nil {
			lastErr = err
		} else {
			delivered = true
		}
	}
	if !delivered && lastErr != nil {
		return lastErr
	}
	if !delivered {
		s.logger.Warn("notify: cancellation not delivered, no contact details",
			"clinic_id", appt.ClinicID, "patient_id", appt.PatientID)
	}
	return nil
}

var _ reminders.Notifier = (*Service)(nil)
