package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellhavenhq/telehealth-platform/pkg/logging"
)

// Event types emitted by the booking engine.
const (
	TypeBookingConfirmed = "booking.confirmed.v1"
	TypeBookingCancelled = "booking.cancelled.v1"
	TypeCreditsGranted   = "credits.granted.v1"
)

// BookingConfirmed is the payload for TypeBookingConfirmed and
// TypeBookingCancelled.
type BookingConfirmed struct {
	BookingID   uuid.UUID `json:"booking_id"`
	TherapistID uuid.UUID `json:"therapist_id"`
	PatientID   uuid.UUID `json:"patient_id"`
	Day         string    `json:"day"`
	Start       string    `json:"start"`
	SessionType string    `json:"session_type"`
}

// CreditsGranted is the payload for TypeCreditsGranted.
type CreditsGranted struct {
	PatientID        uuid.UUID `json:"patient_id"`
	Count            int       `json:"count"`
	PackageReference string    `json:"package_reference"`
}

// OutboxEntry represents a pending event.
type OutboxEntry struct {
	ID        uuid.UUID
	Type      string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// DeliveryHandler emits events to downstream transports.
type DeliveryHandler interface {
	Handle(ctx context.Context, entry OutboxEntry) error
}

type outboxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutboxStore persists events for reliable delivery. Writers enqueue in
// the same database the state change lands in; the Deliverer drains.
type OutboxStore struct {
	pool outboxQuerier
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &OutboxStore{pool: pool}
}

func newOutboxStoreWithExec(exec outboxQuerier) *OutboxStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &OutboxStore{pool: exec}
}

func (s *OutboxStore) Insert(ctx context.Context, eventType string, payload any) (uuid.UUID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("events: marshal payload: %w", err)
	}
	id := uuid.New()
	query := `
		INSERT INTO outbox (id, type, payload)
		VALUES ($1, $2, $3)
	`
	if _, err := s.pool.Exec(ctx, query, id, eventType, data); err != nil {
		return uuid.Nil, fmt.Errorf("events: insert outbox: %w", err)
	}
	return id, nil
}

func (s *OutboxStore) FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	query := `
		SELECT id, type, payload, created_at
		FROM outbox
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("events: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.Type, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan outbox: %w", err)
		}
		entry.Payload = append([]byte(nil), payload...)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`
	ct, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("events: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// Deliverer polls the outbox and invokes the handler.
type Deliverer struct {
	store     *OutboxStore
	handler   DeliveryHandler
	logger    *logging.Logger
	batchSize int32
	interval  time.Duration
}

func NewDeliverer(store *OutboxStore, handler DeliveryHandler, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		store:     store,
		handler:   handler,
		logger:    logger,
		batchSize: 25,
		interval:  15 * time.Second,
	}
}

func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.handler == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

func (d *Deliverer) drain(ctx context.Context) {
	entries, err := d.store.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return
	}
	for _, entry := range entries {
		if err := d.handler.Handle(ctx, entry); err != nil {
			d.logger.Error("outbox delivery failed", "error", err, "event_id", entry.ID, "type", entry.Type)
			continue
		}
		if ok, err := d.store.MarkDelivered(ctx, entry.ID); err != nil {
			d.logger.Error("failed to mark outbox delivered", "error", err, "event_id", entry.ID)
		} else if ok {
			d.logger.Debug("outbox delivered", "event_id", entry.ID, "type", entry.Type)
		}
	}
}
