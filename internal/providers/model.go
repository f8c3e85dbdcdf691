// Package providers exposes the provider directory: who practices what,
// what they charge, and when they see patients.
package providers

import (
	"time"

	"github.com/google/uuid"

	"github.com/careline-ai/careline/internal/scheduling"
)

// Provider is a practitioner patients can book with.
type Provider struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Specialty string    `json:"specialty"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	FeeCents  int64     `json:"fee_cents"`
	Rating    float64   `json:"rating"`
	Available bool      `json:"available"`
	CreatedAt time.Time `json:"created_at"`
}

// ScheduleEntry is one recurring weekly window in a provider's schedule,
// rendered with wall-clock times.
type ScheduleEntry struct {
	Weekday     string `json:"weekday"`
	Start       string `json:"start"`
	End         string `json:"end"`
	SlotMinutes int    `json:"slot_minutes"`
}

func scheduleEntry(w scheduling.RecurringWindow) ScheduleEntry {
	return ScheduleEntry{
		Weekday:     w.Weekday.String(),
		Start:       w.Start.String(),
		End:         w.End.String(),
		SlotMinutes: w.SlotMinutes,
	}
}

// Details is a provider plus their weekly schedule.
type Details struct {
	Provider
	Schedule []ScheduleEntry `json:"schedule"`
}

// SearchFilter narrows a provider search. Empty fields match everything.
type SearchFilter struct {
	Specialty     string
	AvailableOnly bool
}
