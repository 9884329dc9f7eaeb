package bookings

import (
	"time"

	"github.com/google/uuid"

	"github.com/wellhavenhq/telehealth-platform/internal/availability"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusConfirmed      Status = "confirmed"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusNoShow         Status = "no_show"
)

// legalTransitions encodes the booking state machine. There is no path
// back into pending_payment and terminal states have no successors.
var legalTransitions = map[Status][]Status{
	StatusPendingPayment: {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusCompleted, StatusCancelled, StatusNoShow},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Booking is a patient's claim on one therapist time slot.
// Rows are never hard-deleted; cancellations keep the row with
// status cancelled so history stays auditable.
type Booking struct {
	ID              uuid.UUID                `json:"id"`
	TherapistID     uuid.UUID                `json:"therapist_id"`
	PatientID       uuid.UUID                `json:"patient_id"`
	Day             time.Time                `json:"day"`
	StartMinute     int                      `json:"start_minute"`
	DurationMinutes int                      `json:"duration_minutes"`
	SessionType     availability.SessionType `json:"session_type"`
	Status          Status                   `json:"status"`
	CreditID        *uuid.UUID               `json:"credit_id,omitempty"`
	CancelReason    *string                  `json:"cancel_reason,omitempty"`
	CancelledBy     *string                  `json:"cancelled_by,omitempty"`
	ConfirmedAt     *time.Time               `json:"confirmed_at,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// Active reports whether the booking still occupies its slot.
func (b *Booking) Active() bool {
	return b.Status == StatusPendingPayment || b.Status == StatusConfirmed
}

// EndMinute is the slot end derived from start and duration.
func (b *Booking) EndMinute() int {
	return b.StartMinute + b.DurationMinutes
}
