package therapists

import "errors"

var (
	// ErrNotFound is returned when no active therapist matches the id.
	ErrNotFound = errors.New("therapist not found")
)
