package bookings

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wellhavenhq/telehealth-platform/internal/availability"
)

// Repository persists bookings. Every status change is guarded by the
// current status so concurrent callers cannot skip states.
type Repository interface {
	Insert(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id uuid.UUID) (*Booking, error)
	Confirm(ctx context.Context, id uuid.UUID, creditID uuid.UUID, at time.Time) (*Booking, error)
	Cancel(ctx context.Context, id uuid.UUID, from Status, reason, by string) (*Booking, error)
	Complete(ctx context.Context, id uuid.UUID) (*Booking, error)
	MarkNoShow(ctx context.Context, id uuid.UUID) (*Booking, error)
	BookedStarts(ctx context.Context, therapistID uuid.UUID, day time.Time) ([]int, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]Booking, error)
}

// InMemoryRepository is a map-backed store for tests. It enforces the
// same active-slot uniqueness the database index does.
type InMemoryRepository struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*Booking
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{bookings: make(map[uuid.UUID]*Booking)}
}

func (r *InMemoryRepository) Insert(ctx context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.bookings {
		if other.Active() &&
			other.TherapistID == b.TherapistID &&
			other.Day.Equal(b.Day) &&
			other.StartMinute == b.StartMinute {
			return ErrSlotUnavailable
		}
	}
	clone := *b
	r.bookings[b.ID] = &clone
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	clone := *b
	return &clone, nil
}

func (r *InMemoryRepository) Confirm(ctx context.Context, id uuid.UUID, creditID uuid.UUID, at time.Time) (*Booking, error) {
	return r.transition(id, StatusPendingPayment, StatusConfirmed, func(b *Booking) {
		b.CreditID = &creditID
		b.ConfirmedAt = &at
	})
}

func (r *InMemoryRepository) Cancel(ctx context.Context, id uuid.UUID, from Status, reason, by string) (*Booking, error) {
	return r.transition(id, from, StatusCancelled, func(b *Booking) {
		b.CancelReason = &reason
		b.CancelledBy = &by
	})
}

func (r *InMemoryRepository) Complete(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return r.transition(id, StatusConfirmed, StatusCompleted, nil)
}

func (r *InMemoryRepository) MarkNoShow(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return r.transition(id, StatusConfirmed, StatusNoShow, nil)
}

func (r *InMemoryRepository) transition(id uuid.UUID, from, to Status, apply func(*Booking)) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	if b.Status != from {
		return nil, ErrIllegalTransition
	}
	b.Status = to
	b.UpdatedAt = time.Now().UTC()
	if apply != nil {
		apply(b)
	}
	clone := *b
	return &clone, nil
}

// BookedStarts satisfies availability.BookedSlotSource.
func (r *InMemoryRepository) BookedStarts(ctx context.Context, therapistID uuid.UUID, day time.Time) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var starts []int
	for _, b := range r.bookings {
		if b.Active() && b.TherapistID == therapistID && b.Day.Equal(day) {
			starts = append(starts, b.StartMinute)
		}
	}
	return starts, nil
}

func (r *InMemoryRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Booking
	for _, b := range r.bookings {
		if b.Status == StatusPendingPayment && b.CreatedAt.Before(cutoff) {
			out = append(out, *b)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

var _ Repository = (*InMemoryRepository)(nil)
var _ availability.BookedSlotSource = (*InMemoryRepository)(nil)
