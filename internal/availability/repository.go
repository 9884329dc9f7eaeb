package availability

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository reads a therapist's recurring rules and date exceptions.
// The resolver never writes through it.
type Repository interface {
	ActiveRules(ctx context.Context, therapistID uuid.UUID) ([]Rule, error)
	ExceptionsInRange(ctx context.Context, therapistID uuid.UUID, from, to time.Time) ([]DateException, error)
	ExceptionForDay(ctx context.Context, therapistID uuid.UUID, day time.Time) (*DateException, error)
}

// BookedSlotSource reports the start minutes already held by a live booking
// for one therapist-day. Implemented by the bookings repository.
type BookedSlotSource interface {
	BookedStarts(ctx context.Context, therapistID uuid.UUID, day time.Time) ([]int, error)
}

// InMemoryRepository is a map-backed Repository used in tests.
type InMemoryRepository struct {
	mu         sync.RWMutex
	rules      map[uuid.UUID][]Rule
	exceptions map[uuid.UUID][]DateException
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		rules:      make(map[uuid.UUID][]Rule),
		exceptions: make(map[uuid.UUID][]DateException),
	}
}

// AddRule stores a rule after validation.
func (r *InMemoryRepository) AddRule(rule Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.rules[rule.TherapistID] = append(r.rules[rule.TherapistID], rule)
	r.mu.Unlock()
	return nil
}

// AddException stores an exception after validation.
func (r *InMemoryRepository) AddException(exc DateException) error {
	if err := exc.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.exceptions[exc.TherapistID] = append(r.exceptions[exc.TherapistID], exc)
	r.mu.Unlock()
	return nil
}

// ActiveRules returns the therapist's active rules.
func (r *InMemoryRepository) ActiveRules(ctx context.Context, therapistID uuid.UUID) ([]Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Rule
	for _, rule := range r.rules[therapistID] {
		if rule.Active {
			out = append(out, rule)
		}
	}
	return out, nil
}

// ExceptionsInRange returns exceptions with from <= day < to.
func (r *InMemoryRepository) ExceptionsInRange(ctx context.Context, therapistID uuid.UUID, from, to time.Time) ([]DateException, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []DateException
	for _, exc := range r.exceptions[therapistID] {
		if !exc.Day.Before(from) && exc.Day.Before(to) {
			out = append(out, exc)
		}
	}
	return out, nil
}

// ExceptionForDay returns the exception for one date, or nil.
func (r *InMemoryRepository) ExceptionForDay(ctx context.Context, therapistID uuid.UUID, day time.Time) (*DateException, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.exceptions[therapistID] {
		if r.exceptions[therapistID][i].Day.Equal(day) {
			exc := r.exceptions[therapistID][i]
			return &exc, nil
		}
	}
	return nil, nil
}
