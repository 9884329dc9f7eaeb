package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of pgxpool.Pool the repository needs. pgxmock
// satisfies it in tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository stores credits in the relational database. All state
// transitions are guarded UPDATEs so concurrent callers cannot skip states.
type PostgresRepository struct {
	db querier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("credits: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithQuerier allows injecting a mock connection for tests.
func NewPostgresRepositoryWithQuerier(db querier) *PostgresRepository {
	if db == nil {
		panic("credits: querier required")
	}
	return &PostgresRepository{db: db}
}

// AvailableCredits returns the patient's available credits oldest first.
func (r *PostgresRepository) AvailableCredits(ctx context.Context, patientID uuid.UUID) ([]Credit, error) {
	query := `
		SELECT id, patient_id, status, package_reference, purchased_at, spent_at, booking_id
		FROM credits
		WHERE patient_id = $1 AND status = 'available'
		ORDER BY purchased_at, id
	`
	rows, err := r.db.Query(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("credits: select available: %w", err)
	}
	defer rows.Close()

	var out []Credit
	for rows.Next() {
		var c Credit
		if err := rows.Scan(
			&c.ID,
			&c.PatientID,
			&c.Status,
			&c.PackageReference,
			&c.PurchasedAt,
			&c.SpentAt,
			&c.BookingID,
		); err != nil {
			return nil, fmt.Errorf("credits: scan credit: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("credits: iterate credits: %w", err)
	}
	return out, nil
}

// ReserveOldest atomically picks the patient's oldest available credit and
// marks it reserved. SKIP LOCKED keeps concurrent reservations from ever
// selecting the same row; each caller gets a distinct credit or
// ErrInsufficientCredits.
func (r *PostgresRepository) ReserveOldest(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error) {
	query := `
		UPDATE credits SET status = 'reserved'
		WHERE id = (
			SELECT id FROM credits
			WHERE patient_id = $1 AND status = 'available'
			ORDER BY purchased_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id
	`
	var id uuid.UUID
	if err := r.db.QueryRow(ctx, query, patientID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrInsufficientCredits
		}
		return uuid.Nil, fmt.Errorf("credits: reserve: %w", err)
	}
	return id, nil
}

// ConfirmSpend transitions reserved → spent and stamps the booking.
func (r *PostgresRepository) ConfirmSpend(ctx context.Context, creditID, bookingID uuid.UUID) error {
	query := `
		UPDATE credits
		SET status = 'spent', spent_at = NOW(), booking_id = $2
		WHERE id = $1 AND status = 'reserved'
	`
	tag, err := r.db.Exec(ctx, query, creditID, bookingID)
	if err != nil {
		return fmt.Errorf("credits: confirm spend: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionFailure(ctx, creditID)
	}
	return nil
}

// Release transitions reserved → available. Idempotent: a credit that is
// already available stays untouched and no error is returned.
func (r *PostgresRepository) Release(ctx context.Context, creditID uuid.UUID) error {
	query := `
		UPDATE credits
		SET status = 'available', booking_id = NULL
		WHERE id = $1 AND status = 'reserved'
	`
	tag, err := r.db.Exec(ctx, query, creditID)
	if err != nil {
		return fmt.Errorf("credits: release: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err := r.transitionFailure(ctx, creditID)
		if errors.Is(err, errAlreadyAvailable) {
			return nil
		}
		return err
	}
	return nil
}

var errAlreadyAvailable = errors.New("credit already available")

// transitionFailure classifies a guarded UPDATE that matched no row.
func (r *PostgresRepository) transitionFailure(ctx context.Context, creditID uuid.UUID) error {
	var status Status
	err := r.db.QueryRow(ctx, `SELECT status FROM credits WHERE id = $1`, creditID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCreditNotFound
		}
		return fmt.Errorf("credits: inspect status: %w", err)
	}
	if status == StatusAvailable {
		return errAlreadyAvailable
	}
	return fmt.Errorf("%w: credit %s is %s", ErrInvariantViolation, creditID, status)
}

// ReservedFor returns the oldest reserved credit for the patient, if any.
func (r *PostgresRepository) ReservedFor(ctx context.Context, patientID uuid.UUID) (uuid.UUID, bool, error) {
	query := `
		SELECT id
		FROM credits
		WHERE patient_id = $1 AND status = 'reserved'
		ORDER BY purchased_at, id
		LIMIT 1
	`
	var id uuid.UUID
	if err := r.db.QueryRow(ctx, query, patientID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("credits: select reserved: %w", err)
	}
	return id, true, nil
}

// Grant inserts count available credits for the patient in one transaction.
func (r *PostgresRepository) Grant(ctx context.Context, patientID uuid.UUID, count int, packageRef string) ([]uuid.UUID, error) {
	if count <= 0 {
		return nil, fmt.Errorf("credits: grant count must be positive, got %d", count)
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("credits: begin grant tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO credits (id, patient_id, status, package_reference)
		VALUES ($1, $2, 'available', $3)
	`
	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		if _, err := tx.Exec(ctx, query, id, patientID, packageRef); err != nil {
			return nil, fmt.Errorf("credits: insert grant: %w", err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("credits: commit grant: %w", err)
	}
	return ids, nil
}

// ActivePackages lists purchasable packages.
func (r *PostgresRepository) ActivePackages(ctx context.Context) ([]Package, error) {
	query := `
		SELECT id, name, credits, amount_cents, active
		FROM credit_packages
		WHERE active
		ORDER BY amount_cents
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("credits: select packages: %w", err)
	}
	defer rows.Close()

	var out []Package
	for rows.Next() {
		var p Package
		if err := rows.Scan(&p.ID, &p.Name, &p.Credits, &p.AmountCents, &p.Active); err != nil {
			return nil, fmt.Errorf("credits: scan package: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("credits: iterate packages: %w", err)
	}
	return out, nil
}

// PackageByID returns an active package.
func (r *PostgresRepository) PackageByID(ctx context.Context, id string) (*Package, error) {
	query := `
		SELECT id, name, credits, amount_cents, active
		FROM credit_packages
		WHERE id = $1 AND active
	`
	var p Package
	err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Credits, &p.AmountCents, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("credits: select package: %w", err)
	}
	return &p, nil
}
