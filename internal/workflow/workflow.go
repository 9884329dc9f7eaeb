package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wellhavenhq/telehealth-platform/internal/availability"
	"github.com/wellhavenhq/telehealth-platform/internal/bookings"
	"github.com/wellhavenhq/telehealth-platform/internal/credits"
	"github.com/wellhavenhq/telehealth-platform/internal/events"
	"github.com/wellhavenhq/telehealth-platform/internal/observability/metrics"
	"github.com/wellhavenhq/telehealth-platform/internal/therapists"
	"github.com/wellhavenhq/telehealth-platform/pkg/logging"
)

var workflowTracer = otel.Tracer("wellhaven.internal.workflow")

// SlotResolver yields the bookable slots for a therapist day.
type SlotResolver interface {
	TimeSlots(ctx context.Context, therapistID uuid.UUID, day time.Time) ([]availability.TimeSlot, error)
}

// CreditLedger is the slice of the ledger the workflow drives.
type CreditLedger interface {
	ReserveOne(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error)
	ConfirmSpend(ctx context.Context, creditID, bookingID uuid.UUID) error
	Release(ctx context.Context, creditID uuid.UUID) error
	Packages(ctx context.Context) ([]credits.Package, error)
}

// ConflictGuard is the slice of the guard the workflow drives.
type ConflictGuard interface {
	TryReserveSlot(ctx context.Context, patientID uuid.UUID, slot availability.TimeSlot) (*bookings.Booking, error)
	ConfirmBooking(ctx context.Context, bookingID, creditID uuid.UUID) (*bookings.Booking, error)
	ReleaseSlot(ctx context.Context, bookingID uuid.UUID, reason string) error
}

// SlotCacheInvalidator drops cached slot lists after a slot changes hands.
type SlotCacheInvalidator interface {
	Invalidate(ctx context.Context, therapistID uuid.UUID, day time.Time)
}

// EventSink records domain events for asynchronous delivery.
type EventSink interface {
	Insert(ctx context.Context, eventType string, payload any) (uuid.UUID, error)
}

// Request is one booking attempt.
type Request struct {
	PatientID   uuid.UUID `json:"patient_id"`
	TherapistID uuid.UUID `json:"therapist_id"`
	Day         time.Time `json:"day"`
	StartMinute int       `json:"start_minute"`
}

// Outcome is the result of a successful attemptBooking call. Either
// Booking is set, or PurchaseRequired is true and Packages carries the
// offers the patient can buy to top up.
type Outcome struct {
	Booking          *bookings.Booking `json:"booking,omitempty"`
	PurchaseRequired bool              `json:"purchase_required"`
	Packages         []credits.Package `json:"packages,omitempty"`
}

// Workflow orchestrates one booking attempt end to end. Every failure
// branch compensates its earlier steps, so a failed attempt never
// leaves a credit reserved or a slot held.
type Workflow struct {
	resolver SlotResolver
	ledger   CreditLedger
	guard    ConflictGuard
	cache    SlotCacheInvalidator
	sink     EventSink
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
}

// Option customizes a Workflow.
type Option func(*Workflow)

// WithSlotCache wires cache invalidation after slot-changing steps.
func WithSlotCache(cache SlotCacheInvalidator) Option {
	return func(w *Workflow) { w.cache = cache }
}

// WithEventSink wires outbox event recording.
func WithEventSink(sink EventSink) Option {
	return func(w *Workflow) { w.sink = sink }
}

// WithMetrics wires attempt counters.
func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(w *Workflow) { w.metrics = m }
}

// New creates the booking workflow.
func New(resolver SlotResolver, ledger CreditLedger, guard ConflictGuard, logger *logging.Logger, opts ...Option) *Workflow {
	if resolver == nil || ledger == nil || guard == nil {
		panic("workflow: resolver, ledger and guard required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	w := &Workflow{
		resolver: resolver,
		ledger:   ledger,
		guard:    guard,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// AttemptBooking runs the fixed sequence: validate, reserve a credit,
// reserve the slot, spend the credit, confirm the booking. Safe to
// retry after any failure.
func (w *Workflow) AttemptBooking(ctx context.Context, req Request) (*Outcome, error) {
	ctx, span := workflowTracer.Start(ctx, "workflow.attempt_booking", trace.WithAttributes(
		attribute.String("therapist_id", req.TherapistID.String()),
		attribute.String("patient_id", req.PatientID.String()),
	))
	defer span.End()

	slot, berr := w.validate(ctx, req)
	if berr != nil {
		w.observe(berr)
		span.RecordError(berr)
		return nil, berr
	}

	creditID, err := w.ledger.ReserveOne(ctx, req.PatientID)
	if err != nil {
		if errors.Is(err, credits.ErrInsufficientCredits) {
			return w.purchaseRequired(ctx)
		}
		return nil, w.fail(span, KindUnavailable, "could not check your credits, please retry", err)
	}

	booking, err := w.guard.TryReserveSlot(ctx, req.PatientID, *slot)
	if err != nil {
		w.releaseCredit(ctx, creditID)
		if errors.Is(err, bookings.ErrSlotUnavailable) {
			w.metrics.ObserveSlotConflict()
			return nil, w.fail(span, KindSlotUnavailable, "that time was just taken, please pick another slot", err)
		}
		return nil, w.fail(span, KindUnavailable, "could not hold the slot, please retry", err)
	}

	if err := w.ledger.ConfirmSpend(ctx, creditID, booking.ID); err != nil {
		w.releaseSlot(ctx, booking, "credit spend failed")
		w.releaseCredit(ctx, creditID)
		return nil, w.fail(span, KindInvariantViolation, "something went wrong, you have not been charged", err)
	}

	confirmed, err := w.guard.ConfirmBooking(ctx, booking.ID, creditID)
	if err != nil {
		// The credit is already spent; nothing here may refund it. Flag
		// loudly so the on-call can reconcile.
		w.logger.Error("booking confirm failed after credit spend",
			"booking_id", booking.ID, "credit_id", creditID, "error", err)
		return nil, w.fail(span, KindInvariantViolation, "something went wrong, please contact support", err)
	}

	w.invalidateSlots(ctx, confirmed)
	w.recordConfirmed(ctx, confirmed)
	w.observeOutcome("confirmed")
	w.logger.Info("booking attempt succeeded",
		"booking_id", confirmed.ID, "patient_id", req.PatientID, "credit_id", creditID)
	return &Outcome{Booking: confirmed}, nil
}

// validate resolves the requested slot against live availability. The
// resolver already excludes past and taken slots, so a miss for an
// otherwise well-formed request reads as unavailable.
func (w *Workflow) validate(ctx context.Context, req Request) (*availability.TimeSlot, *BookingError) {
	if req.PatientID == uuid.Nil || req.TherapistID == uuid.Nil {
		return nil, newBookingError(KindInvalidArgument, "missing patient or therapist", nil)
	}
	if req.StartMinute < 0 || req.StartMinute >= 24*60 {
		return nil, newBookingError(KindInvalidArgument, "start time out of range", nil)
	}

	slots, err := w.resolver.TimeSlots(ctx, req.TherapistID, req.Day)
	if err != nil {
		switch {
		case errors.Is(err, therapists.ErrNotFound):
			return nil, newBookingError(KindNotFound, "therapist not found", err)
		case errors.Is(err, availability.ErrInvalidDate):
			return nil, newBookingError(KindInvalidArgument, "invalid date", err)
		default:
			return nil, newBookingError(KindUnavailable, "could not load availability, please retry", err)
		}
	}
	for i := range slots {
		if slots[i].StartMinute == req.StartMinute {
			return &slots[i], nil
		}
	}
	return nil, newBookingError(KindSlotUnavailable, "that time is not available, please pick another slot", nil)
}

func (w *Workflow) purchaseRequired(ctx context.Context) (*Outcome, error) {
	offers, err := w.ledger.Packages(ctx)
	if err != nil {
		w.logger.Error("package offer load failed", "error", err)
		offers = nil
	}
	w.observeOutcome("purchase_required")
	return &Outcome{PurchaseRequired: true, Packages: offers}, nil
}

func (w *Workflow) releaseCredit(ctx context.Context, creditID uuid.UUID) {
	if err := w.ledger.Release(ctx, creditID); err != nil {
		w.logger.Error("compensating credit release failed", "credit_id", creditID, "error", err)
	}
}

func (w *Workflow) releaseSlot(ctx context.Context, b *bookings.Booking, reason string) {
	if err := w.guard.ReleaseSlot(ctx, b.ID, reason); err != nil {
		w.logger.Error("compensating slot release failed", "booking_id", b.ID, "error", err)
		return
	}
	w.invalidateSlots(ctx, b)
}

func (w *Workflow) invalidateSlots(ctx context.Context, b *bookings.Booking) {
	if w.cache != nil {
		w.cache.Invalidate(ctx, b.TherapistID, b.Day)
	}
}

func (w *Workflow) recordConfirmed(ctx context.Context, b *bookings.Booking) {
	if w.sink == nil {
		return
	}
	payload := events.BookingConfirmed{
		BookingID:   b.ID,
		TherapistID: b.TherapistID,
		PatientID:   b.PatientID,
		Day:         b.Day.Format(time.DateOnly),
		Start:       availability.FormatMinute(b.StartMinute),
		SessionType: string(b.SessionType),
	}
	if _, err := w.sink.Insert(ctx, events.TypeBookingConfirmed, payload); err != nil {
		w.logger.Error("outbox enqueue failed", "booking_id", b.ID, "error", err)
	}
}

func (w *Workflow) fail(span trace.Span, kind Kind, guidance string, err error) error {
	berr := newBookingError(kind, guidance, err)
	span.RecordError(berr)
	w.observe(berr)
	return berr
}

func (w *Workflow) observe(err *BookingError) {
	w.observeOutcome(string(err.Kind))
}

func (w *Workflow) observeOutcome(outcome string) {
	w.metrics.ObserveAttempt(outcome)
}
