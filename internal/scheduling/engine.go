package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/careline-ai/careline/internal/observability/metrics"
	"github.com/careline-ai/careline/pkg/logging"
)

// EventKind identifies a booking lifecycle event for the notification
// dispatcher.
type EventKind string

const (
	EventBooked      EventKind = "booked"
	EventCancelled   EventKind = "cancelled"
	EventRescheduled EventKind = "rescheduled"
)

// Notifier receives booking lifecycle events. The engine treats delivery as
// fire-and-forget: failures are logged and recorded in the change log, never
// surfaced to the booking caller.
type Notifier interface {
	Notify(ctx context.Context, kind EventKind, appt *Appointment) error
}

// EngineConfig tunes the booking engine.
type EngineConfig struct {
	// HorizonDays bounds how far ahead appointments may be booked.
	HorizonDays int
	// StorageTimeout bounds each storage operation.
	StorageTimeout time.Duration
	// NotifyTimeout bounds the asynchronous notification dispatch.
	NotifyTimeout time.Duration
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func (c *EngineConfig) applyDefaults() {
	if c.HorizonDays <= 0 {
		c.HorizonDays = 90
	}
	if c.StorageTimeout <= 0 {
		c.StorageTimeout = 5 * time.Second
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = 10 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Engine computes availability and manages the appointment lifecycle.
type Engine struct {
	store    Store
	notifier Notifier
	logger   *logging.Logger
	metrics  *metrics.BookingMetrics
	cfg      EngineConfig
}

// NewEngine wires the booking engine. notifier and m may be nil.
func NewEngine(store Store, notifier Notifier, logger *logging.Logger, m *metrics.BookingMetrics, cfg EngineConfig) *Engine {
	if store == nil {
		panic("scheduling: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg.applyDefaults()
	return &Engine{
		store:    store,
		notifier: notifier,
		logger:   logger,
		metrics:  m,
		cfg:      cfg,
	}
}

// storageCall runs fn under the configured storage deadline and maps a
// deadline expiry to ErrStorageTimeout. The store either fully committed or
// not at all; the caller is told to retry, never left with a partial write.
func (e *Engine) storageCall(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.StorageTimeout)
	defer cancel()
	err := fn(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrStorageTimeout
	}
	return err
}

// ListSlots returns the free slots for the provider across the date range,
// inclusive on both ends, in chronological order. Read-only; holds no locks
// past the call.
func (e *Engine) ListSlots(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Slot, error) {
	from, to = DateOnly(from), DateOnly(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: date range end before start", ErrInvalidRequest)
	}
	e.metrics.ObserveSlotQuery()

	var out []Slot
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		windows, err := e.store.WindowsForWeekday(ctx, providerID, d.Weekday())
		if err != nil {
			return nil, err
		}
		if len(windows) == 0 {
			continue
		}
		booked, err := e.store.AppointmentsOn(ctx, providerID, d)
		if err != nil {
			return nil, err
		}
		date := d
		out = append(out, expandDay(windows, booked, func(start, end TimeOfDay) Slot {
			return Slot{ProviderID: providerID, Date: date, Start: start, End: end}
		})...)
	}
	return out, nil
}

// BookRequest carries the inputs to Book.
type BookRequest struct {
	PatientID  uuid.UUID
	ProviderID uuid.UUID
	Date       time.Time
	Start      TimeOfDay
	Reason     string
	Notes      string
}

func (r BookRequest) validate(now time.Time, horizonDays int) error {
	if r.PatientID == uuid.Nil || r.ProviderID == uuid.Nil {
		return fmt.Errorf("%w: patient and provider are required", ErrInvalidRequest)
	}
	if !r.Start.Valid() {
		return fmt.Errorf("%w: time out of range", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Reason) == "" {
		return fmt.Errorf("%w: reason is required", ErrInvalidRequest)
	}
	today := DateOnly(now)
	date := DateOnly(r.Date)
	if date.Before(today) {
		return fmt.Errorf("%w: cannot book in the past", ErrInvalidRequest)
	}
	if date.After(today.AddDate(0, 0, horizonDays)) {
		return fmt.Errorf("%w: cannot book more than %d days ahead", ErrInvalidRequest, horizonDays)
	}
	return nil
}

// Book validates the slot against the provider's windows and performs an
// atomic conditional insert. Concurrent double-submission resolves to exactly
// one winner; the loser sees ErrSlotUnavailable from the storage layer.
func (e *Engine) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	now := e.cfg.Now().UTC()
	if err := req.validate(now, e.cfg.HorizonDays); err != nil {
		e.metrics.ObserveAttempt("book", "invalid_request")
		return nil, err
	}
	date := DateOnly(req.Date)

	windows, err := e.store.WindowsForWeekday(ctx, req.ProviderID, date.Weekday())
	if err != nil {
		return nil, err
	}
	if !slotCovers(windows, req.Start) {
		e.metrics.ObserveAttempt("book", "slot_unavailable")
		return nil, fmt.Errorf("%w: %s %s is outside the provider's schedule",
			ErrSlotUnavailable, FormatDate(date), req.Start)
	}

	// Advisory pre-check: cheaper failure and a better message than the
	// index violation, but the insert below is the correctness mechanism.
	booked, err := e.store.AppointmentsOn(ctx, req.ProviderID, date)
	if err != nil {
		return nil, err
	}
	for _, a := range booked {
		if a.Start == req.Start {
			e.metrics.ObserveAttempt("book", "slot_unavailable")
			return nil, fmt.Errorf("%w: %s %s is already taken", ErrSlotUnavailable, FormatDate(date), req.Start)
		}
	}

	appt := &Appointment{
		ID:         uuid.New(),
		PatientID:  req.PatientID,
		ProviderID: req.ProviderID,
		Date:       date,
		Start:      req.Start,
		Status:     StatusScheduled,
		Reason:     strings.TrimSpace(req.Reason),
		Notes:      strings.TrimSpace(req.Notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := e.storageCall(ctx, func(ctx context.Context) error {
		return e.store.InsertIfFree(ctx, appt)
	}); err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			e.metrics.ObserveAttempt("book", "slot_unavailable")
		} else {
			e.metrics.ObserveAttempt("book", "error")
		}
		return nil, err
	}

	e.metrics.ObserveAttempt("book", "ok")
	e.appendChange(ctx, ChangeRecord{
		AppointmentID: appt.ID,
		Kind:          ChangeBooked,
		Actor:         "patient",
		Detail:        fmt.Sprintf("%s %s", FormatDate(date), appt.Start),
		At:            now,
	})
	e.dispatchNotification(EventBooked, appt)
	e.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"provider_id", appt.ProviderID,
		"date", FormatDate(appt.Date),
		"start", appt.Start.String(),
	)
	return appt, nil
}

// Confirm transitions Scheduled -> Confirmed.
func (e *Engine) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return e.transition(ctx, id, StatusConfirmed, ChangeConfirmed, "provider", "")
}

// Cancel transitions a Scheduled/Confirmed appointment to Cancelled and
// records who cancelled and why.
func (e *Engine) Cancel(ctx context.Context, id uuid.UUID, actor, reason string) (*Appointment, error) {
	appt, err := e.transition(ctx, id, StatusCancelled, ChangeCancelled, actor, reason)
	if err != nil {
		return nil, err
	}
	e.dispatchNotification(EventCancelled, appt)
	return appt, nil
}

// MarkCompleted records that the visit happened. Terminal.
func (e *Engine) MarkCompleted(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return e.transition(ctx, id, StatusCompleted, ChangeCompleted, "provider", "")
}

// MarkNoShow records that the patient did not appear. Terminal.
func (e *Engine) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return e.transition(ctx, id, StatusNoShow, ChangeNoShow, "provider", "")
}

func (e *Engine) transition(ctx context.Context, id uuid.UUID, to Status, changeKind, actor, reason string) (*Appointment, error) {
	appt, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(appt.Status, to); err != nil {
		e.metrics.ObserveAttempt(string(to), "invalid_transition")
		return nil, err
	}

	now := e.cfg.Now().UTC()
	appt.Status = to
	appt.UpdatedAt = now
	if to == StatusCancelled {
		appt.CancelledBy = actor
		appt.CancelReason = reason
		appt.CancelledAt = &now
	}

	if err := e.storageCall(ctx, func(ctx context.Context) error {
		return e.store.UpdateStatus(ctx, appt)
	}); err != nil {
		e.metrics.ObserveAttempt(string(to), "error")
		return nil, err
	}

	e.metrics.ObserveAttempt(string(to), "ok")
	e.appendChange(ctx, ChangeRecord{
		AppointmentID: appt.ID,
		Kind:          changeKind,
		Actor:         actor,
		Detail:        reason,
		At:            now,
	})
	return appt, nil
}

// Reschedule moves an appointment to a new slot as one logical operation:
// the original is cancelled and a replacement inserted in a single storage
// transaction. If the new slot cannot be booked the original is untouched.
func (e *Engine) Reschedule(ctx context.Context, id uuid.UUID, newDate time.Time, newStart TimeOfDay) (*Appointment, error) {
	now := e.cfg.Now().UTC()
	orig, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(orig.Status, StatusCancelled); err != nil {
		e.metrics.ObserveAttempt("reschedule", "invalid_transition")
		return nil, err
	}

	req := BookRequest{
		PatientID:  orig.PatientID,
		ProviderID: orig.ProviderID,
		Date:       newDate,
		Start:      newStart,
		Reason:     orig.Reason,
		Notes:      orig.Notes,
	}
	if err := req.validate(now, e.cfg.HorizonDays); err != nil {
		e.metrics.ObserveAttempt("reschedule", "invalid_request")
		return nil, err
	}
	date := DateOnly(newDate)

	windows, err := e.store.WindowsForWeekday(ctx, orig.ProviderID, date.Weekday())
	if err != nil {
		return nil, err
	}
	if !slotCovers(windows, newStart) {
		e.metrics.ObserveAttempt("reschedule", "slot_unavailable")
		return nil, fmt.Errorf("%w: %s %s is outside the provider's schedule",
			ErrSlotUnavailable, FormatDate(date), newStart)
	}

	cancelled := *orig
	cancelled.Status = StatusCancelled
	cancelled.CancelledBy = "patient"
	cancelled.CancelReason = "rescheduled"
	cancelled.CancelledAt = &now
	cancelled.UpdatedAt = now

	repl := &Appointment{
		ID:         uuid.New(),
		PatientID:  orig.PatientID,
		ProviderID: orig.ProviderID,
		Date:       date,
		Start:      newStart,
		Status:     StatusScheduled,
		Reason:     orig.Reason,
		Notes:      orig.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := e.storageCall(ctx, func(ctx context.Context) error {
		return e.store.Reschedule(ctx, &cancelled, repl)
	}); err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			e.metrics.ObserveAttempt("reschedule", "slot_unavailable")
		} else {
			e.metrics.ObserveAttempt("reschedule", "error")
		}
		return nil, err
	}

	e.metrics.ObserveAttempt("reschedule", "ok")
	e.appendChange(ctx, ChangeRecord{
		AppointmentID: orig.ID,
		Kind:          ChangeRescheduled,
		Actor:         "patient",
		Detail:        fmt.Sprintf("moved to %s %s (new id %s)", FormatDate(date), newStart, repl.ID),
		At:            now,
	})
	e.dispatchNotification(EventRescheduled, repl)
	return repl, nil
}

// Get loads a single appointment.
func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return e.store.Get(ctx, id)
}

// ListForPatient returns the patient's appointments, upcoming only unless
// includePast is set.
func (e *Engine) ListForPatient(ctx context.Context, patientID uuid.UUID, includePast bool) ([]Appointment, error) {
	return e.store.ListForPatient(ctx, patientID, includePast, DateOnly(e.cfg.Now()))
}

func (e *Engine) appendChange(ctx context.Context, rec ChangeRecord) {
	if err := e.store.AppendChange(ctx, rec); err != nil {
		e.logger.Error("failed to append change record",
			"appointment_id", rec.AppointmentID, "kind", rec.Kind, "error", err)
	}
}

// dispatchNotification fires the notifier on its own goroutine with a
// deadline. Delivery failure never affects the booking; it is logged and
// recorded in the change log.
func (e *Engine) dispatchNotification(kind EventKind, appt *Appointment) {
	if e.notifier == nil {
		return
	}
	cp := *appt
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.NotifyTimeout)
		defer cancel()
		if err := e.notifier.Notify(ctx, kind, &cp); err != nil {
			e.logger.Error("notification dispatch failed",
				"event", string(kind), "appointment_id", cp.ID, "error", err)
			// The notify deadline may be what failed; the failure record
			// gets its own.
			logCtx, logCancel := context.WithTimeout(context.Background(), e.cfg.StorageTimeout)
			defer logCancel()
			e.appendChange(logCtx, ChangeRecord{
				AppointmentID: cp.ID,
				Kind:          ChangeNotifyFailed,
				Detail:        fmt.Sprintf("%s: %v", kind, err),
				At:            e.cfg.Now().UTC(),
			})
		}
	}()
}
