package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres error code raised by the partial
// unique index over active bookings.
const uniqueViolation = "23505"

const bookingColumns = `
	id, therapist_id, patient_id, day, start_minute, duration_minutes,
	session_type, status, credit_id, cancel_reason, cancelled_by,
	confirmed_at, created_at, updated_at
`

// querier is the subset of pgxpool.Pool the repository needs. pgxmock
// satisfies it in tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores bookings in the relational database. Slot
// uniqueness is enforced by a partial unique index over active rows,
// which closes the check-then-act race without explicit locking.
type PostgresRepository struct {
	db querier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithQuerier allows injecting a mock connection for tests.
func NewPostgresRepositoryWithQuerier(db querier) *PostgresRepository {
	if db == nil {
		panic("bookings: querier required")
	}
	return &PostgresRepository{db: db}
}

// Insert writes a new pending_payment booking. A conflicting active
// booking for the same slot surfaces as ErrSlotUnavailable.
func (r *PostgresRepository) Insert(ctx context.Context, b *Booking) error {
	query := `
		INSERT INTO bookings (
			id, therapist_id, patient_id, day, start_minute,
			duration_minutes, session_type, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`
	_, err := r.db.Exec(ctx, query,
		b.ID, b.TherapistID, b.PatientID, b.Day, b.StartMinute,
		b.DurationMinutes, b.SessionType, b.Status, b.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrSlotUnavailable
		}
		return fmt.Errorf("bookings: insert: %w", err)
	}
	return nil
}

// Get loads one booking by id.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("bookings: load: %w", err)
	}
	return b, nil
}

// Confirm transitions pending_payment to confirmed and stamps the
// spent credit on the row.
func (r *PostgresRepository) Confirm(ctx context.Context, id uuid.UUID, creditID uuid.UUID, at time.Time) (*Booking, error) {
	query := `
		UPDATE bookings
		SET status = 'confirmed', credit_id = $2, confirmed_at = $3, updated_at = now()
		WHERE id = $1 AND status = 'pending_payment'
		RETURNING ` + bookingColumns
	return r.guardedUpdate(ctx, id, StatusConfirmed, query, id, creditID, at)
}

// Cancel transitions the booking from the given status to cancelled.
// The from guard distinguishes workflow releases (pending_payment)
// from admin cancellations (confirmed).
func (r *PostgresRepository) Cancel(ctx context.Context, id uuid.UUID, from Status, reason, by string) (*Booking, error) {
	query := `
		UPDATE bookings
		SET status = 'cancelled', cancel_reason = $3, cancelled_by = $4, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + bookingColumns
	return r.guardedUpdate(ctx, id, StatusCancelled, query, id, from, reason, by)
}

// Complete transitions confirmed to completed.
func (r *PostgresRepository) Complete(ctx context.Context, id uuid.UUID) (*Booking, error) {
	query := `
		UPDATE bookings
		SET status = 'completed', updated_at = now()
		WHERE id = $1 AND status = 'confirmed'
		RETURNING ` + bookingColumns
	return r.guardedUpdate(ctx, id, StatusCompleted, query, id)
}

// MarkNoShow transitions confirmed to no_show.
func (r *PostgresRepository) MarkNoShow(ctx context.Context, id uuid.UUID) (*Booking, error) {
	query := `
		UPDATE bookings
		SET status = 'no_show', updated_at = now()
		WHERE id = $1 AND status = 'confirmed'
		RETURNING ` + bookingColumns
	return r.guardedUpdate(ctx, id, StatusNoShow, query, id)
}

func (r *PostgresRepository) guardedUpdate(ctx context.Context, id uuid.UUID, to Status, query string, args ...any) (*Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, query, args...))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("bookings: transition to %s: %w", to, err)
	}
	// Guard missed. Inspect the row to tell "gone" from "wrong state".
	var current Status
	inspectErr := r.db.QueryRow(ctx, `SELECT status FROM bookings WHERE id = $1`, id).Scan(&current)
	if errors.Is(inspectErr, pgx.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if inspectErr != nil {
		return nil, fmt.Errorf("bookings: inspect after missed guard: %w", inspectErr)
	}
	return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, to)
}

// BookedStarts returns the start minutes of active bookings for one
// therapist day. It satisfies availability.BookedSlotSource.
func (r *PostgresRepository) BookedStarts(ctx context.Context, therapistID uuid.UUID, day time.Time) ([]int, error) {
	query := `
		SELECT start_minute
		FROM bookings
		WHERE therapist_id = $1 AND day = $2
		  AND status IN ('pending_payment', 'confirmed')
		ORDER BY start_minute
	`
	rows, err := r.db.Query(ctx, query, therapistID, day)
	if err != nil {
		return nil, fmt.Errorf("bookings: select booked starts: %w", err)
	}
	defer rows.Close()

	var starts []int
	for rows.Next() {
		var s int
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("bookings: scan start: %w", err)
		}
		starts = append(starts, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: iterate starts: %w", err)
	}
	return starts, nil
}

// ListStalePending returns pending_payment bookings created before the
// cutoff, oldest first, for the expiry sweep.
func (r *PostgresRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'pending_payment' AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("bookings: select stale pending: %w", err)
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("bookings: scan stale pending: %w", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: iterate stale pending: %w", err)
	}
	return out, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID,
		&b.TherapistID,
		&b.PatientID,
		&b.Day,
		&b.StartMinute,
		&b.DurationMinutes,
		&b.SessionType,
		&b.Status,
		&b.CreditID,
		&b.CancelReason,
		&b.CancelledBy,
		&b.ConfirmedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

var _ Repository = (*PostgresRepository)(nil)
