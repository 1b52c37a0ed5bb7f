package store

import "errors"

// Booking errors returned to the API layer as values, never panics.
var (
	// ErrDuplicateActiveReservation is returned by Enqueue when the user
	// already holds a waiting or active reservation.
	ErrDuplicateActiveReservation = errors.New("user already has an active reservation")

	// ErrQueueFull is returned by Enqueue when waiting+active reservations
	// have reached the configured queue limit.
	ErrQueueFull = errors.New("reservation queue is full")

	// ErrUnknownUser is returned when a user code does not reference an
	// existing user.
	ErrUnknownUser = errors.New("unknown user code")
)
