package scheduling

import "errors"

var (
	// ErrInvalidRequest indicates malformed or out-of-range input.
	ErrInvalidRequest = errors.New("scheduling: invalid request")

	// ErrSlotUnavailable indicates the requested slot is outside any active
	// window or already taken by a non-cancelled appointment.
	ErrSlotUnavailable = errors.New("scheduling: slot unavailable")

	// ErrInvalidTransition indicates a status change not permitted by the
	// appointment lifecycle graph.
	ErrInvalidTransition = errors.New("scheduling: invalid status transition")

	// ErrNotFound indicates the appointment or provider does not exist.
	ErrNotFound = errors.New("scheduling: not found")

	// ErrStorageTimeout indicates the storage transaction did not complete in
	// time. The operation either fully committed or not at all; callers may
	// safely retry.
	ErrStorageTimeout = errors.New("scheduling: storage timeout")
)
