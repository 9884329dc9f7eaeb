package credits

import "errors"

var (
	// ErrInsufficientCredits is returned when a patient has no available credit to reserve.
	ErrInsufficientCredits = errors.New("no available credits")

	// ErrCreditNotFound is returned when no credit matches the id.
	ErrCreditNotFound = errors.New("credit not found")

	// ErrInvariantViolation is returned when a transition is requested from an
	// illegal state, e.g. spending a credit that was never reserved. It marks
	// an orchestration bug, not a user-facing condition.
	ErrInvariantViolation = errors.New("credit state transition not permitted")

	// ErrPackageNotFound is returned when no active package matches the id.
	ErrPackageNotFound = errors.New("credit package not found")
)
