package availability

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionType distinguishes individual from group sessions.
type SessionType string

const (
	SessionIndividual SessionType = "individual"
	SessionGroup      SessionType = "group"
)

const minutesPerDay = 24 * 60

// Rule is a recurring weekly availability window for a therapist.
// Rules are never deleted, only deactivated.
type Rule struct {
	ID              uuid.UUID   `json:"id"`
	TherapistID     uuid.UUID   `json:"therapist_id"`
	Weekday         time.Weekday `json:"weekday"`
	StartMinute     int         `json:"start_minute"`
	EndMinute       int         `json:"end_minute"`
	DurationMinutes int         `json:"duration_minutes"`
	SessionType     SessionType `json:"session_type"`
	Active          bool        `json:"active"`
	CreatedAt       time.Time   `json:"created_at"`
}

// Validate checks the window invariants.
func (r *Rule) Validate() error {
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		return ErrInvalidWeekday
	}
	if r.StartMinute < 0 || r.EndMinute > minutesPerDay || r.StartMinute >= r.EndMinute {
		return ErrInvalidWindow
	}
	if r.DurationMinutes <= 0 || r.DurationMinutes > r.EndMinute-r.StartMinute {
		return ErrInvalidDuration
	}
	return nil
}

// DateException overrides the recurring rules for one calendar date:
// either the day is fully closed, or a custom window replaces the rules.
type DateException struct {
	ID              uuid.UUID   `json:"id"`
	TherapistID     uuid.UUID   `json:"therapist_id"`
	Day             time.Time   `json:"day"`
	Closed          bool        `json:"closed"`
	StartMinute     int         `json:"start_minute,omitempty"`
	EndMinute       int         `json:"end_minute,omitempty"`
	DurationMinutes int         `json:"duration_minutes,omitempty"`
	SessionType     SessionType `json:"session_type,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// Validate checks the override invariants. Closed exceptions carry no window.
func (e *DateException) Validate() error {
	if e.Closed {
		return nil
	}
	if e.StartMinute < 0 || e.EndMinute > minutesPerDay || e.StartMinute >= e.EndMinute {
		return ErrInvalidWindow
	}
	if e.DurationMinutes <= 0 || e.DurationMinutes > e.EndMinute-e.StartMinute {
		return ErrInvalidDuration
	}
	return nil
}

// TimeSlot is a derived bookable window. It carries no identity of its own;
// two slots are the same iff therapist, day and start match.
type TimeSlot struct {
	TherapistID     uuid.UUID   `json:"therapist_id"`
	Day             time.Time   `json:"day"`
	StartMinute     int         `json:"start_minute"`
	EndMinute       int         `json:"end_minute"`
	DurationMinutes int         `json:"duration_minutes"`
	SessionType     SessionType `json:"session_type"`
}

// Same reports slot equality per the therapist/day/start rule.
func (s TimeSlot) Same(o TimeSlot) bool {
	return s.TherapistID == o.TherapistID &&
		s.Day.Equal(o.Day) &&
		s.StartMinute == o.StartMinute
}

// FormatMinute renders a minute-of-day as HH:MM.
func FormatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ParseMinute parses HH:MM into a minute-of-day.
func ParseMinute(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("availability: parse time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// DateOnly truncates a time to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
