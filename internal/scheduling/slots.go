package scheduling

import "sort"

// expandDay computes the free slots for one date from the provider's active
// windows for that weekday and the non-cancelled appointments already booked.
//
// Windows are processed sorted by start time. Overlapping windows are allowed,
// but a candidate slot that overlaps an already-emitted slot is dropped so the
// result is always disjoint regardless of granularity differences between
// windows. A slot is considered taken when any booked start falls inside it.
func expandDay(windows []RecurringWindow, booked []Appointment, slot func(start, end TimeOfDay) Slot) []Slot {
	active := make([]RecurringWindow, 0, len(windows))
	for _, w := range windows {
		if w.Active && w.Validate() == nil {
			active = append(active, w)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].Start != active[j].Start {
			return active[i].Start < active[j].Start
		}
		return active[i].End < active[j].End
	})

	takenStarts := make([]TimeOfDay, 0, len(booked))
	for _, a := range booked {
		if a.Status != StatusCancelled {
			takenStarts = append(takenStarts, a.Start)
		}
	}

	var out []Slot
	for _, w := range active {
		step := TimeOfDay(w.SlotMinutes)
		for start := w.Start; start+step <= w.End; start += step {
			end := start + step
			if overlapsAny(out, start, end) {
				continue
			}
			if startWithin(takenStarts, start, end) {
				continue
			}
			out = append(out, slot(start, end))
		}
	}
	return out
}

func overlapsAny(slots []Slot, start, end TimeOfDay) bool {
	for _, s := range slots {
		if start < s.End && s.Start < end {
			return true
		}
	}
	return false
}

func startWithin(starts []TimeOfDay, start, end TimeOfDay) bool {
	for _, t := range starts {
		if t >= start && t < end {
			return true
		}
	}
	return false
}

// slotCovers reports whether the resolved expansion of the given windows
// emits a slot beginning exactly at start. Resolution is the same one
// ListSlots applies, so overlapping windows never make a start bookable
// that listing would not offer.
func slotCovers(windows []RecurringWindow, start TimeOfDay) bool {
	slots := expandDay(windows, nil, func(start, end TimeOfDay) Slot {
		return Slot{Start: start, End: end}
	})
	for _, s := range slots {
		if s.Start == start {
			return true
		}
	}
	return false
}
