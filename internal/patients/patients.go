package patients

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound means no patient exists with the given id.
var ErrNotFound = errors.New("patients: not found")

// Patient is a person who books sessions and owns credits.
type Patient struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
}

// Directory looks up patients.
type Directory interface {
	Get(ctx context.Context, id uuid.UUID) (*Patient, error)
}

// PostgresDirectory reads patients from the relational database.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	if pool == nil {
		panic("patients: pgx pool required")
	}
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	query := `
		SELECT id, display_name, email, created_at
		FROM patients
		WHERE id = $1
	`
	var p Patient
	err := d.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.DisplayName, &p.Email, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("patients: load: %w", err)
	}
	return &p, nil
}

// InMemoryDirectory backs tests.
type InMemoryDirectory struct {
	mu       sync.RWMutex
	patients map[uuid.UUID]*Patient
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{patients: make(map[uuid.UUID]*Patient)}
}

func (d *InMemoryDirectory) Put(p *Patient) {
	d.mu.Lock()
	d.patients[p.ID] = p
	d.mu.Unlock()
}

func (d *InMemoryDirectory) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *p
	return &clone, nil
}
