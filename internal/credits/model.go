package credits

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks a credit through its lifecycle. The only legal forward
// path is available → reserved → spent; reserved credits may fall back to
// available, spent ones never do.
type Status string

const (
	StatusAvailable Status = "available"
	StatusReserved  Status = "reserved"
	StatusSpent     Status = "spent"
	StatusRefunded  Status = "refunded"
)

// Credit is a single-use entitlement to book one session.
type Credit struct {
	ID               uuid.UUID  `json:"id"`
	PatientID        uuid.UUID  `json:"patient_id"`
	Status           Status     `json:"status"`
	PackageReference string     `json:"package_reference"`
	PurchasedAt      time.Time  `json:"purchased_at"`
	SpentAt          *time.Time `json:"spent_at,omitempty"`
	BookingID        *uuid.UUID `json:"booking_id,omitempty"`
}

// Package is a purchasable bundle of credits.
type Package struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Credits     int    `json:"credits"`
	AmountCents int    `json:"amount_cents"`
	Active      bool   `json:"active"`
}

// Balance summarizes a patient's available credits, oldest first.
type Balance struct {
	PatientID uuid.UUID   `json:"patient_id"`
	Available int         `json:"available"`
	CreditIDs []uuid.UUID `json:"credit_ids"`
}
