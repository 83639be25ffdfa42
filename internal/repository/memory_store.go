package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"parkspot/internal/db"
)

// MemoryStore keeps lots, reservations and vendors in process memory. It
// serves local development without DATABASE_URL and backs the service tests.
type MemoryStore struct {
	mu           sync.RWMutex
	lots         map[string]db.ParkingLot
	reservations map[string]db.Reservation
	vendors      map[string]Vendor

	lockMu   sync.Mutex
	lotLocks map[string]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lots:         make(map[string]db.ParkingLot),
		reservations: make(map[string]db.Reservation),
		vendors:      make(map[string]Vendor),
		lotLocks:     make(map[string]*sync.Mutex),
	}
}

func (m *MemoryStore) GetLot(_ context.Context, id string) (*db.ParkingLot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lot, ok := m.lots[id]
	if !ok {
		return nil, fmt.Errorf("parking lot %s: %w", id, ErrNotFound)
	}
	return &lot, nil
}

func (m *MemoryStore) ListLots(_ context.Context, filter LotFilter) ([]db.ParkingLot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var lots []db.ParkingLot
	for _, lot := range m.lots {
		if filter.VendorID != "" && lot.VendorID != filter.VendorID {
			continue
		}
		if filter.ActiveOnly && !lot.Active {
			continue
		}
		lots = append(lots, lot)
	}
	slices.SortFunc(lots, func(a, b db.ParkingLot) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return lots, nil
}

func (m *MemoryStore) CreateLot(_ context.Context, lot *db.ParkingLot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lots[lot.ID]; ok {
		return fmt.Errorf("parking lot %s: %w", lot.ID, ErrDuplicate)
	}
	m.lots[lot.ID] = *lot
	return nil
}

func (m *MemoryStore) UpdateLot(_ context.Context, lot *db.ParkingLot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.lots[lot.ID]
	if !ok {
		return fmt.Errorf("parking lot %s: %w", lot.ID, ErrNotFound)
	}
	updated := *lot
	updated.VendorID = existing.VendorID
	updated.CreatedAt = existing.CreatedAt
	m.lots[lot.ID] = updated
	return nil
}

func (m *MemoryStore) FindReservations(_ context.Context, filter ReservationFilter) ([]db.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []db.Reservation
	for _, r := range m.reservations {
		if filter.Matches(&r) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b db.Reservation) int { return a.StartTime.Compare(b.StartTime) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryStore) GetReservation(_ context.Context, id string) (*db.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, fmt.Errorf("reservation %s: %w", id, ErrNotFound)
	}
	return &r, nil
}

func (m *MemoryStore) GetReservationByPaymentIntent(_ context.Context, paymentIntentID string) (*db.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.reservations {
		if paymentIntentID != "" && r.PaymentIntentID == paymentIntentID {
			return &r, nil
		}
	}
	return nil, fmt.Errorf("reservation for payment intent %s: %w", paymentIntentID, ErrNotFound)
}

// hashTaken mirrors the partial unique index on vehicle_time_hash.
func (m *MemoryStore) hashTaken(hash, exceptID string) bool {
	if hash == "" {
		return false
	}
	for id, r := range m.reservations {
		if id != exceptID && r.VehicleTimeHash == hash && !r.Status.IsTerminal() {
			return true
		}
	}
	return false
}

func (m *MemoryStore) CreateReservation(_ context.Context, res *db.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reservations[res.ID]; ok {
		return fmt.Errorf("reservation %s: %w", res.ID, ErrDuplicate)
	}
	if m.hashTaken(res.VehicleTimeHash, "") {
		return fmt.Errorf("reservation %s: %w", res.ID, ErrDuplicate)
	}
	m.reservations[res.ID] = *res
	return nil
}

func (m *MemoryStore) UpdateReservationWindow(_ context.Context, res *db.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[res.ID]
	if !ok {
		return fmt.Errorf("reservation %s: %w", res.ID, ErrNotFound)
	}
	if m.hashTaken(res.VehicleTimeHash, res.ID) {
		return fmt.Errorf("reservation %s: %w", res.ID, ErrDuplicate)
	}
	r.StartTime = res.StartTime
	r.EndTime = res.EndTime
	r.DurationHours = res.DurationHours
	r.VehicleTimeHash = res.VehicleTimeHash
	r.AmountCents = res.AmountCents
	r.UpdatedAt = res.UpdatedAt
	m.reservations[res.ID] = r
	return nil
}

func (m *MemoryStore) UpdateReservationStatus(_ context.Context, id string, from, to db.ReservationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok || r.Status != from {
		return fmt.Errorf("reservation %s in status %s: %w", id, from, ErrNotFound)
	}
	r.Status = to
	r.UpdatedAt = time.Now().UTC()
	m.reservations[id] = r
	return nil
}

func (m *MemoryStore) UpdatePayment(_ context.Context, id, paymentIntentID, paymentStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return fmt.Errorf("reservation %s: %w", id, ErrNotFound)
	}
	r.PaymentIntentID = paymentIntentID
	r.PaymentStatus = paymentStatus
	r.UpdatedAt = time.Now().UTC()
	m.reservations[id] = r
	return nil
}

// heldLocks collects the plate locks taken inside one WithLotLock call.
type heldLocks struct {
	mus []*sync.Mutex
}

type heldLocksKey struct{}

func (m *MemoryStore) keyLock(key string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	l, ok := m.lotLocks[key]
	if !ok {
		l = &sync.Mutex{}
		m.lotLocks[key] = l
	}
	return l
}

func (m *MemoryStore) WithLotLock(ctx context.Context, lotID string, vt db.VehicleType, fn func(ctx context.Context) error) error {
	l := m.keyLock(lotID + ":" + string(vt))
	l.Lock()
	defer l.Unlock()

	held := &heldLocks{}
	defer func() {
		for i := len(held.mus) - 1; i >= 0; i-- {
			held.mus[i].Unlock()
		}
	}()
	return fn(context.WithValue(ctx, heldLocksKey{}, held))
}

func (m *MemoryStore) LockPlate(ctx context.Context, plate string) error {
	held, ok := ctx.Value(heldLocksKey{}).(*heldLocks)
	if !ok {
		return ErrNoLockScope
	}
	l := m.keyLock("plate:" + plate)
	l.Lock()
	held.mus = append(held.mus, l)
	return nil
}

func (m *MemoryStore) ReservationIDsBefore(_ context.Context, status db.ReservationStatus, column JobTimeColumn, before time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, r := range m.reservations {
		if r.Status != status {
			continue
		}
		var ts time.Time
		switch column {
		case JobStartTime:
			ts = r.StartTime
		case JobEndTime:
			ts = r.EndTime
		case JobCreatedAt:
			ts = r.CreatedAt
		default:
			return nil, fmt.Errorf("unsupported job column %q", column)
		}
		if ts.Before(before) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *MemoryStore) UpdateReservationStatuses(_ context.Context, ids []string, from, to db.ReservationStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for _, id := range ids {
		r, ok := m.reservations[id]
		if !ok || r.Status != from {
			continue
		}
		r.Status = to
		r.UpdatedAt = now
		m.reservations[id] = r
		n++
	}
	return n, nil
}

func (m *MemoryStore) GetByEmail(_ context.Context, email string) (*Vendor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vendors[normalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("vendor %s: %w", email, ErrNotFound)
	}
	return &v, nil
}

func (m *MemoryStore) CreateVendor(_ context.Context, email, password string) (*Vendor, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := normalizeEmail(email)
	if _, ok := m.vendors[key]; ok {
		return nil, fmt.Errorf("vendor %s: %w", key, ErrDuplicate)
	}
	v := Vendor{ID: uuid.NewString(), Email: key, PasswordHash: string(hashed)}
	m.vendors[key] = v
	return &v, nil
}
