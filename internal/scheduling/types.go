// Package scheduling implements the availability and booking engine:
// slot computation from recurring weekly windows, conflict-free appointment
// creation, and the appointment lifecycle state machine.
package scheduling

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimeOfDay is a clock time expressed as minutes after midnight.
// It marshals as "HH:MM" which is also the wire format used by tools
// and HTTP payloads.
type TimeOfDay int

const minutesPerDay = 24 * 60

// ParseTimeOfDay parses "HH:MM" (24-hour).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("scheduling: invalid time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("scheduling: time %q out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Valid reports whether t falls within a single day.
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

const dateLayout = "2006-01-02"

// ParseDate parses "YYYY-MM-DD" into a UTC-midnight timestamp.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("scheduling: invalid date %q: %w", s, err)
	}
	return d, nil
}

// FormatDate renders a timestamp as "YYYY-MM-DD".
func FormatDate(d time.Time) string {
	return d.Format(dateLayout)
}

// DateOnly normalizes a timestamp to UTC midnight.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// RecurringWindow is a weekly-repeating availability template for a provider.
type RecurringWindow struct {
	ID          uuid.UUID    `json:"id"`
	ProviderID  uuid.UUID    `json:"provider_id"`
	Weekday     time.Weekday `json:"weekday"`
	Start       TimeOfDay    `json:"start"`
	End         TimeOfDay    `json:"end"`
	SlotMinutes int          `json:"slot_minutes"`
	Active      bool         `json:"active"`
}

// Validate enforces the window invariants: start < end, positive granularity.
func (w RecurringWindow) Validate() error {
	if !w.Start.Valid() || w.End <= 0 || w.End > minutesPerDay {
		return fmt.Errorf("%w: window bounds out of range", ErrInvalidRequest)
	}
	if w.Start >= w.End {
		return fmt.Errorf("%w: window start %s not before end %s", ErrInvalidRequest, w.Start, w.End)
	}
	if w.SlotMinutes <= 0 {
		return fmt.Errorf("%w: slot granularity must be positive", ErrInvalidRequest)
	}
	return nil
}

// Status is the appointment lifecycle state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// Appointment is a committed booking. Rows are never deleted; status
// transitions are the only mutation and each one lands in the change log.
type Appointment struct {
	ID           uuid.UUID  `json:"id"`
	PatientID    uuid.UUID  `json:"patient_id"`
	ProviderID   uuid.UUID  `json:"provider_id"`
	Date         time.Time  `json:"date"`
	Start        TimeOfDay  `json:"start"`
	Status       Status     `json:"status"`
	Reason       string     `json:"reason"`
	Notes        string     `json:"notes,omitempty"`
	CancelledBy  string     `json:"cancelled_by,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Slot is a derived bookable interval. Never persisted; recomputed per query.
type Slot struct {
	ProviderID uuid.UUID `json:"provider_id"`
	Date       time.Time `json:"date"`
	Start      TimeOfDay `json:"start"`
	End        TimeOfDay `json:"end"`
}

// ChangeRecord is one entry in the append-only appointment change log.
type ChangeRecord struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Kind          string    `json:"kind"`
	Actor         string    `json:"actor,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	At            time.Time `json:"at"`
}

// Change kinds recorded in the log.
const (
	ChangeBooked       = "booked"
	ChangeConfirmed    = "confirmed"
	ChangeCancelled    = "cancelled"
	ChangeRescheduled  = "rescheduled"
	ChangeCompleted    = "completed"
	ChangeNoShow       = "no_show"
	ChangeNotifyFailed = "notify_failed"
)
