package credits

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository is the storage contract the ledger runs on. Implementations
// must make ReserveOldest atomic under concurrent callers.
type Repository interface {
	AvailableCredits(ctx context.Context, patientID uuid.UUID) ([]Credit, error)
	ReserveOldest(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error)
	ConfirmSpend(ctx context.Context, creditID, bookingID uuid.UUID) error
	Release(ctx context.Context, creditID uuid.UUID) error
	ReservedFor(ctx context.Context, patientID uuid.UUID) (uuid.UUID, bool, error)
	Grant(ctx context.Context, patientID uuid.UUID, count int, packageRef string) ([]uuid.UUID, error)
	ActivePackages(ctx context.Context) ([]Package, error)
	PackageByID(ctx context.Context, id string) (*Package, error)
}

// InMemoryRepository implements Repository with a mutex. It keeps the same
// transition semantics as the Postgres implementation and backs the
// workflow tests.
type InMemoryRepository struct {
	mu       sync.Mutex
	credits  map[uuid.UUID]*Credit
	packages map[string]Package
	seq      int
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		credits:  make(map[uuid.UUID]*Credit),
		packages: make(map[string]Package),
	}
}

// AddPackage registers a purchasable package.
func (r *InMemoryRepository) AddPackage(p Package) {
	r.mu.Lock()
	r.packages[p.ID] = p
	r.mu.Unlock()
}

// Snapshot returns a copy of every credit, for invariant checks in tests.
func (r *InMemoryRepository) Snapshot() []Credit {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Credit, 0, len(r.credits))
	for _, c := range r.credits {
		out = append(out, *c)
	}
	return out
}

func (r *InMemoryRepository) availableLocked(patientID uuid.UUID) []*Credit {
	var out []*Credit
	for _, c := range r.credits {
		if c.PatientID == patientID && c.Status == StatusAvailable {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PurchasedAt.Equal(out[j].PurchasedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].PurchasedAt.Before(out[j].PurchasedAt)
	})
	return out
}

// AvailableCredits returns the patient's available credits oldest first.
func (r *InMemoryRepository) AvailableCredits(ctx context.Context, patientID uuid.UUID) ([]Credit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Credit
	for _, c := range r.availableLocked(patientID) {
		out = append(out, *c)
	}
	return out, nil
}

// ReserveOldest transitions the oldest available credit to reserved.
func (r *InMemoryRepository) ReserveOldest(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	avail := r.availableLocked(patientID)
	if len(avail) == 0 {
		return uuid.Nil, ErrInsufficientCredits
	}
	avail[0].Status = StatusReserved
	return avail[0].ID, nil
}

// ConfirmSpend transitions reserved → spent.
func (r *InMemoryRepository) ConfirmSpend(ctx context.Context, creditID, bookingID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.credits[creditID]
	if !ok {
		return ErrCreditNotFound
	}
	if c.Status != StatusReserved {
		return ErrInvariantViolation
	}
	now := time.Now().UTC()
	c.Status = StatusSpent
	c.SpentAt = &now
	c.BookingID = &bookingID
	return nil
}

// Release transitions reserved → available. Releasing an already-available
// credit is a no-op.
func (r *InMemoryRepository) Release(ctx context.Context, creditID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.credits[creditID]
	if !ok {
		return ErrCreditNotFound
	}
	switch c.Status {
	case StatusReserved:
		c.Status = StatusAvailable
		c.BookingID = nil
		return nil
	case StatusAvailable:
		return nil
	default:
		return ErrInvariantViolation
	}
}

// ReservedFor returns the oldest reserved credit for the patient, if any.
func (r *InMemoryRepository) ReservedFor(ctx context.Context, patientID uuid.UUID) (uuid.UUID, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldest *Credit
	for _, c := range r.credits {
		if c.PatientID != patientID || c.Status != StatusReserved {
			continue
		}
		if oldest == nil || c.PurchasedAt.Before(oldest.PurchasedAt) {
			oldest = c
		}
	}
	if oldest == nil {
		return uuid.Nil, false, nil
	}
	return oldest.ID, true, nil
}

// Grant inserts count available credits for the patient.
func (r *InMemoryRepository) Grant(ctx context.Context, patientID uuid.UUID, count int, packageRef string) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		r.seq++
		c := &Credit{
			ID:               uuid.New(),
			PatientID:        patientID,
			Status:           StatusAvailable,
			PackageReference: packageRef,
			PurchasedAt:      time.Now().UTC().Add(time.Duration(r.seq) * time.Nanosecond),
		}
		r.credits[c.ID] = c
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// ActivePackages lists purchasable packages.
func (r *InMemoryRepository) ActivePackages(ctx context.Context) ([]Package, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Package
	for _, p := range r.packages {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PackageByID returns an active package.
func (r *InMemoryRepository) PackageByID(ctx context.Context, id string) (*Package, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.packages[id]
	if !ok || !p.Active {
		return nil, ErrPackageNotFound
	}
	return &p, nil
}
