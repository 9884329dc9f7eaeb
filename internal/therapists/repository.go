package therapists

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory resolves therapist identities for the booking engine.
type Directory interface {
	Get(ctx context.Context, id uuid.UUID) (*Therapist, error)
}

// PostgresDirectory reads therapists from the relational store.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory initializes a directory backed by pgxpool.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	if pool == nil {
		panic("therapists: pgx pool required")
	}
	return &PostgresDirectory{pool: pool}
}

// Get fetches an active therapist by id.
func (d *PostgresDirectory) Get(ctx context.Context, id uuid.UUID) (*Therapist, error) {
	query := `
		SELECT id, display_name, timezone, active, created_at
		FROM therapists
		WHERE id = $1 AND active
	`
	var t Therapist
	err := d.pool.QueryRow(ctx, query, id).Scan(
		&t.ID,
		&t.DisplayName,
		&t.Timezone,
		&t.Active,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("therapists: select failed: %w", err)
	}
	return &t, nil
}

// InMemoryDirectory is a map-backed Directory used in tests.
type InMemoryDirectory struct {
	mu         sync.RWMutex
	therapists map[uuid.UUID]*Therapist
}

// NewInMemoryDirectory creates an empty in-memory directory.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{therapists: make(map[uuid.UUID]*Therapist)}
}

// Put registers a therapist.
func (d *InMemoryDirectory) Put(t *Therapist) {
	d.mu.Lock()
	d.therapists[t.ID] = t
	d.mu.Unlock()
}

// Get returns a registered therapist or ErrNotFound.
func (d *InMemoryDirectory) Get(ctx context.Context, id uuid.UUID) (*Therapist, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.therapists[id]
	if !ok || !t.Active {
		return nil, ErrNotFound
	}
	return t, nil
}
