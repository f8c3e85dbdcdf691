package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/careline-ai/careline/internal/patients"
	"github.com/careline-ai/careline/internal/providers"
	"github.com/careline-ai/careline/internal/scheduling"
	"github.com/careline-ai/careline/pkg/logging"
)

// PatientDirectory resolves patients for email addressing. Satisfied by
// patients.Repository.
type PatientDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*patients.Patient, error)
}

// ProviderDirectory resolves providers for email addressing. Satisfied by
// providers.Repository.
type ProviderDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*providers.Provider, error)
}

// Service turns appointment events into emails for the patient and the
// provider. It implements scheduling.Notifier.
type Service struct {
	sender          EmailSender
	patientsByID    PatientDirectory
	providersByID   ProviderDirectory
	notifyProviders bool
	logger          *logging.Logger
}

// NewService creates the notification service. When notifyProviders is false
// only the patient is emailed.
func NewService(sender EmailSender, pd PatientDirectory, prd ProviderDirectory, notifyProviders bool, logger *logging.Logger) *Service {
	if sender == nil {
		panic("notify: email sender required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		sender:          sender,
		patientsByID:    pd,
		providersByID:   prd,
		notifyProviders: notifyProviders,
		logger:          logger,
	}
}

// Notify sends the emails for one appointment event. A failure for either
// recipient fails the whole call so the engine records it.
func (s *Service) Notify(ctx context.Context, kind scheduling.EventKind, appt *scheduling.Appointment) error {
	patient, err := s.patientsByID.Get(ctx, appt.PatientID)
	if err != nil {
		return fmt.Errorf("notify: resolve patient: %w", err)
	}
	provider, err := s.providersByID.Get(ctx, appt.ProviderID)
	if err != nil {
		return fmt.Errorf("notify: resolve provider: %w", err)
	}

	subject, body := patientMessage(kind, appt, patient.FirstName, provider.FullName)
	if err := s.sender.Send(ctx, EmailMessage{
		To:      patient.Email,
		ToName:  patient.FirstName + " " + patient.LastName,
		Subject: subject,
		Body:    body,
	}); err != nil {
		return err
	}

	if !s.notifyProviders {
		return nil
	}

	subject, body = providerMessage(kind, appt, patient.FirstName+" "+patient.LastName, provider.FullName)
	return s.sender.Send(ctx, EmailMessage{
		To:      provider.Email,
		ToName:  provider.FullName,
		Subject: subject,
		Body:    body,
	})
}

func when(appt *scheduling.Appointment) string {
	return fmt.Sprintf("%s at %s", scheduling.FormatDate(appt.Date), appt.Start.String())
}

func patientMessage(kind scheduling.EventKind, appt *scheduling.Appointment, patientName, providerName string) (subject, body string) {
	switch kind {
	case scheduling.EventCancelled:
		subject = "Your appointment has been cancelled"
		body = fmt.Sprintf("Hi %s,\n\nYour appointment with %s on %s has been cancelled.",
			patientName, providerName, when(appt))
		if appt.CancelReason != "" {
			body += "\nReason: " + appt.CancelReason
		}
	case scheduling.EventRescheduled:
		subject = "Your appointment has been rescheduled"
		body = fmt.Sprintf("Hi %s,\n\nYour appointment with %s has been moved to %s.",
			patientName, providerName, when(appt))
	default:
		subject = "Your appointment is booked"
		body = fmt.Sprintf("Hi %s,\n\nYour appointment with %s is booked for %s.",
			patientName, providerName, when(appt))
		if appt.Reason != "" {
			body += "\nReason for visit: " + appt.Reason
		}
	}
	body += "\n\nCareLine Health"
	return subject, body
}

func providerMessage(kind scheduling.EventKind, appt *scheduling.Appointment, patientName, providerName string) (subject, body string) {
	switch kind {
	case scheduling.EventCancelled:
		subject = fmt.Sprintf("Cancelled: %s on %s", patientName, when(appt))
		body = fmt.Sprintf("Dr. schedule update for %s:\n\n%s cancelled their appointment on %s.",
			providerName, patientName, when(appt))
	case scheduling.EventRescheduled:
		subject = fmt.Sprintf("Rescheduled: %s now on %s", patientName, when(appt))
		body = fmt.Sprintf("Dr. schedule update for %s:\n\n%s moved their appointment to %s.",
			providerName, patientName, when(appt))
	default:
		subject = fmt.Sprintf("New booking: %s on %s", patientName, when(appt))
		body = fmt.Sprintf("Dr. schedule update for %s:\n\n%s booked an appointment for %s.",
			providerName, patientName, when(appt))
		if appt.Reason != "" {
			body += "\nReason for visit: " + appt.Reason
		}
	}
	body += "\n\nCareLine Health"
	return subject, body
}

var _ scheduling.Notifier = (*Service)(nil)
