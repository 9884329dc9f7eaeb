package housekeeping

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wellhavenhq/telehealth-platform/internal/bookings"
	"github.com/wellhavenhq/telehealth-platform/internal/observability/metrics"
	"github.com/wellhavenhq/telehealth-platform/pkg/logging"
)

const expiredReason = "hold expired"

// staleLister finds pending bookings older than the cutoff.
type staleLister interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]bookings.Booking, error)
}

// slotReleaser cancels a pending booking, freeing its slot.
type slotReleaser interface {
	ReleaseSlot(ctx context.Context, bookingID uuid.UUID, reason string) error
}

// creditReleaser returns a reserved credit to available.
type creditReleaser interface {
	Release(ctx context.Context, creditID uuid.UUID) error
}

// reservationFinder maps a stale booking's patient to the credit their
// abandoned attempt left reserved.
type reservationFinder interface {
	ReservedFor(ctx context.Context, patientID uuid.UUID) (uuid.UUID, bool, error)
}

// Worker expires bookings stuck in pending_payment past the hold
// timeout, releasing both the slot and the credit the attempt reserved.
// A client that abandons mid-workflow therefore never strands either.
type Worker struct {
	stale     staleLister
	guard     slotReleaser
	ledger    creditReleaser
	reserved  reservationFinder
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
	timeout   time.Duration
	batchSize int
	now       func() time.Time
}

// Option customizes a Worker.
type Option func(*Worker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// WithBatchSize caps how many stale bookings one sweep handles.
func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithMetrics wires the expiry counter.
func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// NewWorker creates the expiry worker.
func NewWorker(stale staleLister, guard slotReleaser, ledger creditReleaser, reserved reservationFinder, timeout time.Duration, logger *logging.Logger, opts ...Option) *Worker {
	if stale == nil || guard == nil || ledger == nil {
		panic("housekeeping: stale lister, guard and ledger required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	w := &Worker{
		stale:     stale,
		guard:     guard,
		ledger:    ledger,
		reserved:  reserved,
		logger:    logger,
		timeout:   timeout,
		batchSize: 100,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Sweep expires one batch of stale pending bookings. Returns the number
// expired.
func (w *Worker) Sweep(ctx context.Context) (int, error) {
	cutoff := w.now().Add(-w.timeout)
	stale, err := w.stale.ListStalePending(ctx, cutoff, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("housekeeping: list stale pending: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	w.logger.Info("housekeeping: expiring stale holds", "count", len(stale))

	expired := 0
	for i := range stale {
		if err := w.expireOne(ctx, &stale[i]); err != nil {
			w.logger.Error("housekeeping: expire failed",
				"booking_id", stale[i].ID, "error", err)
			continue
		}
		expired++
	}
	w.metrics.ObserveExpired(expired)
	return expired, nil
}

func (w *Worker) expireOne(ctx context.Context, b *bookings.Booking) error {
	if err := w.guard.ReleaseSlot(ctx, b.ID, expiredReason); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}

	// A booking abandoned before its credit spend still has the credit
	// sitting in reserved. Releasing is idempotent, so racing with a
	// concurrent release is harmless.
	if w.reserved != nil {
		creditID, ok, err := w.reserved.ReservedFor(ctx, b.PatientID)
		if err != nil {
			return fmt.Errorf("find reserved credit: %w", err)
		}
		if ok {
			if err := w.ledger.Release(ctx, creditID); err != nil {
				return fmt.Errorf("release credit: %w", err)
			}
		}
	}

	w.logger.Info("housekeeping: hold expired",
		"booking_id", b.ID, "patient_id", b.PatientID,
		"day", b.Day.Format(time.DateOnly), "start", b.StartMinute)
	return nil
}

// Run sweeps on a fixed interval until the context ends.
func (w *Worker) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				w.logger.Error("housekeeping: sweep failed", "error", err)
			}
		}
	}
}
