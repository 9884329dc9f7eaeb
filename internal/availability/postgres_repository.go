package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository reads availability rules and exceptions from the
// relational store.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("availability: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// ActiveRules returns the therapist's active recurring rules ordered by
// weekday then start.
func (r *PostgresRepository) ActiveRules(ctx context.Context, therapistID uuid.UUID) ([]Rule, error) {
	query := `
		SELECT id, therapist_id, weekday, start_minute, end_minute, duration_minutes, session_type, active, created_at
		FROM availability_rules
		WHERE therapist_id = $1 AND active
		ORDER BY weekday, start_minute
	`
	rows, err := r.pool.Query(ctx, query, therapistID)
	if err != nil {
		return nil, fmt.Errorf("availability: select rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var rule Rule
		var weekday int16
		if err := rows.Scan(
			&rule.ID,
			&rule.TherapistID,
			&weekday,
			&rule.StartMinute,
			&rule.EndMinute,
			&rule.DurationMinutes,
			&rule.SessionType,
			&rule.Active,
			&rule.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("availability: scan rule: %w", err)
		}
		rule.Weekday = time.Weekday(weekday)
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("availability: iterate rules: %w", err)
	}
	return rules, nil
}

// ExceptionsInRange returns exceptions with from <= day < to.
func (r *PostgresRepository) ExceptionsInRange(ctx context.Context, therapistID uuid.UUID, from, to time.Time) ([]DateException, error) {
	query := `
		SELECT id, therapist_id, day, closed,
		       COALESCE(start_minute, 0), COALESCE(end_minute, 0), COALESCE(duration_minutes, 0),
		       COALESCE(session_type, ''), created_at
		FROM date_exceptions
		WHERE therapist_id = $1 AND day >= $2 AND day < $3
		ORDER BY day
	`
	rows, err := r.pool.Query(ctx, query, therapistID, from, to)
	if err != nil {
		return nil, fmt.Errorf("availability: select exceptions: %w", err)
	}
	defer rows.Close()

	var excs []DateException
	for rows.Next() {
		var exc DateException
		if err := rows.Scan(
			&exc.ID,
			&exc.TherapistID,
			&exc.Day,
			&exc.Closed,
			&exc.StartMinute,
			&exc.EndMinute,
			&exc.DurationMinutes,
			&exc.SessionType,
			&exc.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("availability: scan exception: %w", err)
		}
		exc.Day = DateOnly(exc.Day)
		excs = append(excs, exc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("availability: iterate exceptions: %w", err)
	}
	return excs, nil
}

// ExceptionForDay returns the exception for one date, or nil when none exists.
func (r *PostgresRepository) ExceptionForDay(ctx context.Context, therapistID uuid.UUID, day time.Time) (*DateException, error) {
	query := `
		SELECT id, therapist_id, day, closed,
		       COALESCE(start_minute, 0), COALESCE(end_minute, 0), COALESCE(duration_minutes, 0),
		       COALESCE(session_type, ''), created_at
		FROM date_exceptions
		WHERE therapist_id = $1 AND day = $2
	`
	var exc DateException
	err := r.pool.QueryRow(ctx, query, therapistID, day).Scan(
		&exc.ID,
		&exc.TherapistID,
		&exc.Day,
		&exc.Closed,
		&exc.StartMinute,
		&exc.EndMinute,
		&exc.DurationMinutes,
		&exc.SessionType,
		&exc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("availability: select exception: %w", err)
	}
	exc.Day = DateOnly(exc.Day)
	return &exc, nil
}
