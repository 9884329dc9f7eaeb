package credits

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wellhavenhq/telehealth-platform/pkg/logging"
)

var ledgerTracer = otel.Tracer("wellhaven.internal.credits")

// Ledger owns every credit state transition. No other component mutates
// credit rows.
type Ledger struct {
	repo   Repository
	logger *logging.Logger
}

// NewLedger constructs a credit ledger.
func NewLedger(repo Repository, logger *logging.Logger) *Ledger {
	if repo == nil {
		panic("credits: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Ledger{repo: repo, logger: logger}
}

// Balance returns the count and oldest-first ids of the patient's
// available credits. Pure read.
func (l *Ledger) Balance(ctx context.Context, patientID uuid.UUID) (*Balance, error) {
	available, err := l.repo.AvailableCredits(ctx, patientID)
	if err != nil {
		return nil, err
	}
	b := &Balance{PatientID: patientID, Available: len(available), CreditIDs: make([]uuid.UUID, 0, len(available))}
	for _, c := range available {
		b.CreditIDs = append(b.CreditIDs, c.ID)
	}
	return b, nil
}

// ReserveOne atomically reserves the patient's oldest available credit.
func (l *Ledger) ReserveOne(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error) {
	ctx, span := ledgerTracer.Start(ctx, "credits.reserve_one")
	defer span.End()
	span.SetAttributes(attribute.String("wellhaven.patient_id", patientID.String()))

	id, err := l.repo.ReserveOldest(ctx, patientID)
	if err != nil {
		span.RecordError(err)
		return uuid.Nil, err
	}
	l.logger.Info("credit reserved", "patient_id", patientID, "credit_id", id)
	return id, nil
}

// ConfirmSpend marks a reserved credit spent against a booking. Calling it
// for a credit in any other state is an orchestration bug and surfaces
// ErrInvariantViolation.
func (l *Ledger) ConfirmSpend(ctx context.Context, creditID, bookingID uuid.UUID) error {
	if err := l.repo.ConfirmSpend(ctx, creditID, bookingID); err != nil {
		return err
	}
	l.logger.Info("credit spent", "credit_id", creditID, "booking_id", bookingID)
	return nil
}

// Release returns a reserved credit to the available pool. Idempotent.
func (l *Ledger) Release(ctx context.Context, creditID uuid.UUID) error {
	if err := l.repo.Release(ctx, creditID); err != nil {
		return err
	}
	l.logger.Info("credit released", "credit_id", creditID)
	return nil
}

// ReservedFor returns the patient's oldest reserved credit, if one
// exists. The expiry sweep uses it to unwind abandoned attempts.
func (l *Ledger) ReservedFor(ctx context.Context, patientID uuid.UUID) (uuid.UUID, bool, error) {
	return l.repo.ReservedFor(ctx, patientID)
}

// Grant adds count available credits to the patient's ledger. Called from
// the payment callback path after a successful purchase.
func (l *Ledger) Grant(ctx context.Context, patientID uuid.UUID, count int, packageRef string) ([]uuid.UUID, error) {
	ctx, span := ledgerTracer.Start(ctx, "credits.grant")
	defer span.End()
	span.SetAttributes(
		attribute.String("wellhaven.patient_id", patientID.String()),
		attribute.Int("wellhaven.credit_count", count),
	)

	ids, err := l.repo.Grant(ctx, patientID, count, packageRef)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("credits: grant for patient %s: %w", patientID, err)
	}
	l.logger.Info("credits granted", "patient_id", patientID, "count", count, "package", packageRef)
	return ids, nil
}

// Packages lists the purchasable credit packages.
func (l *Ledger) Packages(ctx context.Context) ([]Package, error) {
	return l.repo.ActivePackages(ctx)
}

// PackageByID resolves one active package.
func (l *Ledger) PackageByID(ctx context.Context, id string) (*Package, error) {
	return l.repo.PackageByID(ctx, id)
}
