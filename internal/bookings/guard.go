package bookings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wellhavenhq/telehealth-platform/internal/availability"
	"github.com/wellhavenhq/telehealth-platform/pkg/logging"
)

var guardTracer = otel.Tracer("wellhaven.internal.bookings")

// CancelledBySystem marks cancellations performed by the engine itself
// (workflow compensation, expiry sweep) rather than a person.
const CancelledBySystem = "system"

// Guard owns every Booking status mutation. No other component writes
// booking rows.
type Guard struct {
	repo   Repository
	logger *logging.Logger
	now    func() time.Time
}

// GuardOption customizes a Guard.
type GuardOption func(*Guard)

// WithClock overrides the time source. Tests use this to pin "now".
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) { g.now = now }
}

// NewGuard creates the conflict guard.
func NewGuard(repo Repository, logger *logging.Logger, opts ...GuardOption) *Guard {
	if repo == nil {
		panic("bookings: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	g := &Guard{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TryReserveSlot atomically claims a slot for the patient by inserting
// a pending_payment booking. Exactly one of N concurrent callers for
// the same slot wins; the rest get ErrSlotUnavailable with no side
// effects.
func (g *Guard) TryReserveSlot(ctx context.Context, patientID uuid.UUID, slot availability.TimeSlot) (*Booking, error) {
	ctx, span := guardTracer.Start(ctx, "guard.try_reserve_slot", trace.WithAttributes(
		attribute.String("therapist_id", slot.TherapistID.String()),
		attribute.String("day", slot.Day.Format(time.DateOnly)),
		attribute.Int("start_minute", slot.StartMinute),
	))
	defer span.End()

	now := g.now()
	b := &Booking{
		ID:              uuid.New(),
		TherapistID:     slot.TherapistID,
		PatientID:       patientID,
		Day:             availability.DateOnly(slot.Day),
		StartMinute:     slot.StartMinute,
		DurationMinutes: slot.DurationMinutes,
		SessionType:     slot.SessionType,
		Status:          StatusPendingPayment,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := g.repo.Insert(ctx, b); err != nil {
		span.RecordError(err)
		return nil, err
	}
	g.logger.Info("slot reserved",
		"booking_id", b.ID,
		"therapist_id", b.TherapistID,
		"patient_id", patientID,
		"day", b.Day.Format(time.DateOnly),
		"start", availability.FormatMinute(b.StartMinute),
	)
	return b, nil
}

// ConfirmBooking transitions pending_payment to confirmed once the
// credit spend has gone through, stamping the spent credit.
func (g *Guard) ConfirmBooking(ctx context.Context, bookingID, creditID uuid.UUID) (*Booking, error) {
	ctx, span := guardTracer.Start(ctx, "guard.confirm_booking", trace.WithAttributes(
		attribute.String("booking_id", bookingID.String()),
	))
	defer span.End()

	b, err := g.repo.Confirm(ctx, bookingID, creditID, g.now())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("bookings: confirm %s: %w", bookingID, err)
	}
	g.logger.Info("booking confirmed", "booking_id", bookingID, "credit_id", creditID)
	return b, nil
}

// ReleaseSlot cancels a pending_payment booking when a later workflow
// step failed, freeing the slot immediately. Distinct from a
// user-initiated cancellation.
func (g *Guard) ReleaseSlot(ctx context.Context, bookingID uuid.UUID, reason string) error {
	ctx, span := guardTracer.Start(ctx, "guard.release_slot", trace.WithAttributes(
		attribute.String("booking_id", bookingID.String()),
	))
	defer span.End()

	if _, err := g.repo.Cancel(ctx, bookingID, StatusPendingPayment, reason, CancelledBySystem); err != nil {
		span.RecordError(err)
		return fmt.Errorf("bookings: release slot %s: %w", bookingID, err)
	}
	g.logger.Info("slot released", "booking_id", bookingID, "reason", reason)
	return nil
}

// Cancel cancels a confirmed booking on behalf of a person (patient,
// therapist or admin tooling).
func (g *Guard) Cancel(ctx context.Context, bookingID uuid.UUID, reason, by string) (*Booking, error) {
	b, err := g.repo.Cancel(ctx, bookingID, StatusConfirmed, reason, by)
	if err != nil {
		return nil, fmt.Errorf("bookings: cancel %s: %w", bookingID, err)
	}
	g.logger.Info("booking cancelled", "booking_id", bookingID, "by", by, "reason", reason)
	return b, nil
}

// Complete marks a confirmed booking as held.
func (g *Guard) Complete(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	b, err := g.repo.Complete(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("bookings: complete %s: %w", bookingID, err)
	}
	return b, nil
}

// MarkNoShow marks a confirmed booking the patient did not attend.
func (g *Guard) MarkNoShow(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	b, err := g.repo.MarkNoShow(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("bookings: mark no-show %s: %w", bookingID, err)
	}
	return b, nil
}

// Get loads one booking.
func (g *Guard) Get(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	return g.repo.Get(ctx, bookingID)
}
