package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the schedule store boundary: recurring windows, committed
// appointments and the append-only change log.
//
// InsertIfFree and Reschedule are the only operations that need cross-request
// mutual exclusion; implementations must enforce the (provider, date, start)
// uniqueness guarantee atomically at the storage layer. Engine-level
// pre-checks are an optimization, never the correctness mechanism.
type Store interface {
	// WindowsForWeekday returns the active recurring windows for the
	// provider on the given weekday.
	WindowsForWeekday(ctx context.Context, providerID uuid.UUID, weekday time.Weekday) ([]RecurringWindow, error)

	// AppointmentsOn returns all non-cancelled appointments for the provider
	// on the given date.
	AppointmentsOn(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error)

	// InsertIfFree atomically inserts the appointment unless a non-cancelled
	// appointment already occupies (provider, date, start). Conflicts return
	// ErrSlotUnavailable.
	InsertIfFree(ctx context.Context, appt *Appointment) error

	// Get loads an appointment by id; ErrNotFound if absent.
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// UpdateStatus persists the appointment's status and cancellation
	// metadata.
	UpdateStatus(ctx context.Context, appt *Appointment) error

	// Reschedule cancels orig and inserts repl in a single transaction. If
	// the insert conflicts, nothing changes and ErrSlotUnavailable is
	// returned.
	Reschedule(ctx context.Context, orig *Appointment, repl *Appointment) error

	// ListForPatient returns the patient's appointments; when includePast is
	// false only upcoming scheduled/confirmed ones, ordered by date.
	ListForPatient(ctx context.Context, patientID uuid.UUID, includePast bool, today time.Time) ([]Appointment, error)

	// AppendChange records an entry in the append-only change log.
	AppendChange(ctx context.Context, rec ChangeRecord) error
}
