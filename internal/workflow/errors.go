package workflow

import "fmt"

// Kind classifies a failed booking attempt for the caller.
type Kind string

const (
	KindInvalidArgument     Kind = "invalid_argument"
	KindNotFound            Kind = "not_found"
	KindSlotUnavailable     Kind = "slot_unavailable"
	KindInsufficientCredits Kind = "insufficient_credits"
	KindInvariantViolation  Kind = "invariant_violation"
	KindUnavailable         Kind = "unavailable"
)

// BookingError is the single error type attemptBooking surfaces. Guidance
// is safe to show to the patient.
type BookingError struct {
	Kind     Kind
	Guidance string
	err      error
}

func (e *BookingError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("workflow: %s: %v", e.Kind, e.err)
	}
	return fmt.Sprintf("workflow: %s", e.Kind)
}

func (e *BookingError) Unwrap() error { return e.err }

func newBookingError(kind Kind, guidance string, err error) *BookingError {
	return &BookingError{Kind: kind, Guidance: guidance, err: err}
}
