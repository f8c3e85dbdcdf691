package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func mkSlot(start, end TimeOfDay) Slot {
	return Slot{Start: start, End: end}
}

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return tod
}

func TestExpandDayFullWindow(t *testing.T) {
	windows := []RecurringWindow{{
		Weekday:     time.Monday,
		Start:       mustTime(t, "09:00"),
		End:         mustTime(t, "17:00"),
		SlotMinutes: 30,
		Active:      true,
	}}

	slots := expandDay(windows, nil, mkSlot)

	if len(slots) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(slots))
	}
	if slots[0].Start.String() != "09:00" {
		t.Errorf("first slot should start 09:00, got %s", slots[0].Start)
	}
	if slots[15].Start.String() != "16:30" {
		t.Errorf("last slot should start 16:30, got %s", slots[15].Start)
	}
	for i := 1; i < len(slots); i++ {
		if slots[i].Start < slots[i-1].End {
			t.Errorf("slots %d and %d overlap", i-1, i)
		}
	}
}

func TestExpandDaySubtractsBooked(t *testing.T) {
	windows := []RecurringWindow{{
		Start:       mustTime(t, "09:00"),
		End:         mustTime(t, "12:00"),
		SlotMinutes: 30,
		Active:      true,
	}}
	booked := []Appointment{
		{Start: mustTime(t, "10:00"), Status: StatusScheduled},
		{Start: mustTime(t, "11:30"), Status: StatusConfirmed},
		{Start: mustTime(t, "09:30"), Status: StatusCancelled}, // cancelled frees the slot
	}

	slots := expandDay(windows, booked, mkSlot)

	if len(slots) != 4 {
		t.Fatalf("expected 4 free slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s.Start.String() == "10:00" || s.Start.String() == "11:30" {
			t.Errorf("booked slot %s should not be offered", s.Start)
		}
	}
}

func TestExpandDayOverlappingWindowsStayDisjoint(t *testing.T) {
	// Two overlapping windows with different granularity: sorted by start,
	// the earlier window wins the contested interval.
	windows := []RecurringWindow{
		{Start: mustTime(t, "10:00"), End: mustTime(t, "12:00"), SlotMinutes: 45, Active: true},
		{Start: mustTime(t, "09:00"), End: mustTime(t, "11:00"), SlotMinutes: 30, Active: true},
	}

	slots := expandDay(windows, nil, mkSlot)

	for i := range slots {
		for j := i + 1; j < len(slots); j++ {
			if slots[i].Start < slots[j].End && slots[j].Start < slots[i].End {
				t.Fatalf("slots %s-%s and %s-%s overlap",
					slots[i].Start, slots[i].End, slots[j].Start, slots[j].End)
			}
		}
	}
	if slots[0].Start.String() != "09:00" {
		t.Errorf("expected earliest window first, got %s", slots[0].Start)
	}
}

func TestExpandDaySkipsInactiveAndInvalid(t *testing.T) {
	windows := []RecurringWindow{
		{Start: mustTime(t, "09:00"), End: mustTime(t, "10:00"), SlotMinutes: 30, Active: false},
		{Start: mustTime(t, "12:00"), End: mustTime(t, "11:00"), SlotMinutes: 30, Active: true}, // start >= end
		{Start: mustTime(t, "14:00"), End: mustTime(t, "15:00"), SlotMinutes: 0, Active: true},  // bad granularity
	}

	if slots := expandDay(windows, nil, mkSlot); len(slots) != 0 {
		t.Fatalf("expected no slots from inactive/invalid windows, got %d", len(slots))
	}
}

func TestExpandDayPartialTrailingSlotDropped(t *testing.T) {
	// 09:00-10:15 with 30-minute slots: the trailing 15 minutes are not
	// bookable.
	windows := []RecurringWindow{{
		Start: mustTime(t, "09:00"), End: mustTime(t, "10:15"), SlotMinutes: 30, Active: true,
	}}

	slots := expandDay(windows, nil, mkSlot)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
}

func TestSlotCovers(t *testing.T) {
	windows := []RecurringWindow{{
		Start: mustTime(t, "09:00"), End: mustTime(t, "12:00"), SlotMinutes: 30, Active: true,
	}}

	if !slotCovers(windows, mustTime(t, "10:30")) {
		t.Error("10:30 should be covered")
	}
	if slotCovers(windows, mustTime(t, "10:15")) {
		t.Error("10:15 is off the granularity grid and should not be covered")
	}
	if slotCovers(windows, mustTime(t, "11:45")) {
		t.Error("11:45 + 30min exceeds the window and should not be covered")
	}
	if slotCovers(windows, mustTime(t, "08:30")) {
		t.Error("08:30 is before the window")
	}

	// Overlapping windows resolve the same way expandDay does: a start the
	// listing would drop is not covered even on another window's grid.
	overlapping := []RecurringWindow{
		{Start: mustTime(t, "09:00"), End: mustTime(t, "10:00"), SlotMinutes: 60, Active: true},
		{Start: mustTime(t, "09:30"), End: mustTime(t, "10:30"), SlotMinutes: 30, Active: true},
	}
	if slotCovers(overlapping, mustTime(t, "09:30")) {
		t.Error("09:30 overlaps the 09:00-10:00 slot and should not be covered")
	}
	if !slotCovers(overlapping, mustTime(t, "10:00")) {
		t.Error("10:00 survives overlap resolution and should be covered")
	}
}

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"09:00", "09:00", false},
		{"23:59", "23:59", false},
		{"7:05", "07:05", false},
		{"24:00", "", true},
		{"12:60", "", true},
		{"noonish", "", true},
	}
	for _, tc := range cases {
		got, err := ParseTimeOfDay(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got.String() != tc.want {
			t.Errorf("ParseTimeOfDay(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestWindowValidate(t *testing.T) {
	providerID := uuid.New()
	w := RecurringWindow{ProviderID: providerID, Start: 540, End: 1020, SlotMinutes: 30}
	if err := w.Validate(); err != nil {
		t.Fatalf("valid window rejected: %v", err)
	}
	w.End = w.Start
	if err := w.Validate(); err == nil {
		t.Fatal("start == end should be rejected")
	}
}
