package therapists

import (
	"time"

	"github.com/google/uuid"
)

// Therapist is the minimal projection of a therapist account the booking
// engine needs. Account management lives elsewhere.
type Therapist struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Timezone    string    `json:"timezone"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Location resolves the therapist's IANA timezone, falling back to UTC.
func (t *Therapist) Location() *time.Location {
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
