package bookings

import "errors"

var (
	// ErrSlotUnavailable means another active booking already holds the slot.
	ErrSlotUnavailable = errors.New("bookings: slot unavailable")
	// ErrBookingNotFound means no booking exists with the given id.
	ErrBookingNotFound = errors.New("bookings: booking not found")
	// ErrIllegalTransition means the requested status change violates the
	// booking state machine.
	ErrIllegalTransition = errors.New("bookings: illegal status transition")
)
