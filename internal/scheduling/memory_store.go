package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by tests and local development. It
// enforces the same slot-uniqueness guarantee as the postgres store, under a
// single mutex.
type MemoryStore struct {
	mu           sync.Mutex
	windows      map[uuid.UUID][]RecurringWindow
	appointments map[uuid.UUID]*Appointment
	changes      []ChangeRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows:      make(map[uuid.UUID][]RecurringWindow),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

// AddWindow registers a recurring window for its provider.
func (s *MemoryStore) AddWindow(w RecurringWindow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[w.ProviderID] = append(s.windows[w.ProviderID], w)
}

func (s *MemoryStore) WindowsForWeekday(_ context.Context, providerID uuid.UUID, weekday time.Weekday) ([]RecurringWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RecurringWindow
	for _, w := range s.windows[providerID] {
		if w.Active && w.Weekday == weekday {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *MemoryStore) AppointmentsOn(_ context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appointmentsOnLocked(providerID, date), nil
}

func (s *MemoryStore) appointmentsOnLocked(providerID uuid.UUID, date time.Time) []Appointment {
	var out []Appointment
	for _, a := range s.appointments {
		if a.ProviderID == providerID && a.Date.Equal(date) && a.Status != StatusCancelled {
			out = append(out, *a)
		}
	}
	return out
}

func (s *MemoryStore) InsertIfFree(_ context.Context, appt *Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(appt)
}

func (s *MemoryStore) insertLocked(appt *Appointment) error {
	for _, existing := range s.appointments {
		if existing.ProviderID == appt.ProviderID &&
			existing.Date.Equal(appt.Date) &&
			existing.Start == appt.Start &&
			existing.Status != StatusCancelled {
			return ErrSlotUnavailable
		}
	}
	cp := *appt
	s.appointments[appt.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, appt *Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.appointments[appt.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Status = appt.Status
	existing.CancelledBy = appt.CancelledBy
	existing.CancelReason = appt.CancelReason
	existing.CancelledAt = appt.CancelledAt
	existing.UpdatedAt = appt.UpdatedAt
	return nil
}

func (s *MemoryStore) Reschedule(_ context.Context, orig *Appointment, repl *Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.appointments[orig.ID]
	if !ok {
		return ErrNotFound
	}

	// Cancel first so a reschedule to the same slot succeeds, then undo if
	// the insert conflicts.
	prev := *existing
	existing.Status = StatusCancelled
	existing.CancelledBy = orig.CancelledBy
	existing.CancelReason = orig.CancelReason
	existing.CancelledAt = orig.CancelledAt
	existing.UpdatedAt = orig.UpdatedAt

	if err := s.insertLocked(repl); err != nil {
		*existing = prev
		return err
	}
	return nil
}

func (s *MemoryStore) ListForPatient(_ context.Context, patientID uuid.UUID, includePast bool, today time.Time) ([]Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Appointment
	for _, a := range s.appointments {
		if a.PatientID != patientID {
			continue
		}
		if !includePast {
			if a.Date.Before(today) {
				continue
			}
			if a.Status != StatusScheduled && a.Status != StatusConfirmed {
				continue
			}
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

func (s *MemoryStore) AppendChange(_ context.Context, rec ChangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, rec)
	return nil
}

// Changes returns a copy of the recorded change log, oldest first.
func (s *MemoryStore) Changes() []ChangeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChangeRecord, len(s.changes))
	copy(out, s.changes)
	return out
}
