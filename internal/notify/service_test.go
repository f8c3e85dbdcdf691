package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/careline-ai/careline/internal/patients"
	"github.com/careline-ai/careline/internal/providers"
	"github.com/careline-ai/careline/internal/scheduling"
	"github.com/careline-ai/careline/pkg/logging"
)

type capturingSender struct {
	sent []EmailMessage
	err  error
}

func (c *capturingSender) Send(_ context.Context, msg EmailMessage) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

type fixedPatients struct{ p *patients.Patient }

func (f fixedPatients) Get(_ context.Context, _ uuid.UUID) (*patients.Patient, error) {
	if f.p == nil {
		return nil, patients.ErrNotFound
	}
	return f.p, nil
}

type fixedProviders struct{ p *providers.Provider }

func (f fixedProviders) Get(_ context.Context, _ uuid.UUID) (*providers.Provider, error) {
	if f.p == nil {
		return nil, providers.ErrNotFound
	}
	return f.p, nil
}

func testAppointment() *scheduling.Appointment {
	date, _ := scheduling.ParseDate("2025-11-17")
	return &scheduling.Appointment{
		ID:         uuid.New(),
		PatientID:  uuid.New(),
		ProviderID: uuid.New(),
		Date:       date,
		Start:      600,
		Status:     scheduling.StatusScheduled,
		Reason:     "annual checkup",
		CreatedAt:  time.Now(),
	}
}

func testService(sender EmailSender, notifyProviders bool) *Service {
	return NewService(sender,
		fixedPatients{&patients.Patient{
			FirstName: "Maya", LastName: "Singh", Email: "maya@example.test",
		}},
		fixedProviders{&providers.Provider{
			FullName: "Dr. Asha Rao", Email: "asha@clinic.test",
		}},
		notifyProviders,
		logging.New("error"),
	)
}

func TestNotifyBookedEmailsBothParties(t *testing.T) {
	sender := &capturingSender{}
	svc := testService(sender, true)

	if err := svc.Notify(context.Background(), scheduling.EventBooked, testAppointment()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(sender.sent))
	}
	if sender.sent[0].To != "maya@example.test" {
		t.Fatalf("patient email first, got %q", sender.sent[0].To)
	}
	if !strings.Contains(sender.sent[0].Body, "2025-11-17 at 10:00") {
		t.Fatalf("body missing appointment time: %q", sender.sent[0].Body)
	}
	if sender.sent[1].To != "asha@clinic.test" {
		t.Fatalf("provider email second, got %q", sender.sent[1].To)
	}
}

func TestNotifyPatientOnlyWhenProvidersDisabled(t *testing.T) {
	sender := &capturingSender{}
	svc := testService(sender, false)

	if err := svc.Notify(context.Background(), scheduling.EventCancelled, testAppointment()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0].Subject, "cancelled") {
		t.Fatalf("unexpected subject: %q", sender.sent[0].Subject)
	}
}

func TestNotifySurfacesSendFailure(t *testing.T) {
	sender := &capturingSender{err: errors.New("smtp down")}
	svc := testService(sender, true)

	if err := svc.Notify(context.Background(), scheduling.EventBooked, testAppointment()); err == nil {
		t.Fatal("expected send failure to propagate")
	}
}

func TestNotifyFailsWhenPatientUnknown(t *testing.T) {
	svc := NewService(&capturingSender{}, fixedPatients{}, fixedProviders{}, true, logging.New("error"))

	if err := svc.Notify(context.Background(), scheduling.EventBooked, testAppointment()); err == nil {
		t.Fatal("expected error for unknown patient")
	}
}
