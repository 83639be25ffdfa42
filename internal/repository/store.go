package repository

import (
	"context"
	"errors"
	"time"

	"parkspot/internal/db"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicate   = errors.New("record already exists")
	// ErrNoLockScope is returned by LockPlate outside WithLotLock.
	ErrNoLockScope = errors.New("plate lock requires an enclosing lot lock")
)

// ReservationFilter selects reservations by field equality, set membership and
// interval overlap. Zero-valued fields do not constrain the result.
type ReservationFilter struct {
	ParkingLotID    string
	UserID          string
	NumberPlate     string
	VehicleTimeHash string
	VehicleType     db.VehicleType
	Statuses        []db.ReservationStatus
	// OverlapStart and OverlapEnd, when both set, keep reservations whose
	// [start_time, end_time) overlaps [OverlapStart, OverlapEnd).
	OverlapStart time.Time
	OverlapEnd   time.Time
	ExcludeID    string
	Limit        int
}

func (f ReservationFilter) hasOverlap() bool {
	return !f.OverlapStart.IsZero() && !f.OverlapEnd.IsZero()
}

// Matches applies the filter to a single reservation in memory.
func (f ReservationFilter) Matches(r *db.Reservation) bool {
	if f.ParkingLotID != "" && r.ParkingLotID != f.ParkingLotID {
		return false
	}
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.NumberPlate != "" && r.NumberPlate != f.NumberPlate {
		return false
	}
	if f.VehicleTimeHash != "" && r.VehicleTimeHash != f.VehicleTimeHash {
		return false
	}
	if f.VehicleType != "" && r.VehicleType != f.VehicleType {
		return false
	}
	if f.ExcludeID != "" && r.ID == f.ExcludeID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if r.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.hasOverlap() {
		if !(r.StartTime.Before(f.OverlapEnd) && r.EndTime.After(f.OverlapStart)) {
			return false
		}
	}
	return true
}

type LotFilter struct {
	VendorID   string
	ActiveOnly bool
}

type LotStore interface {
	GetLot(ctx context.Context, id string) (*db.ParkingLot, error)
	ListLots(ctx context.Context, filter LotFilter) ([]db.ParkingLot, error)
	CreateLot(ctx context.Context, lot *db.ParkingLot) error
	UpdateLot(ctx context.Context, lot *db.ParkingLot) error
}

type ReservationStore interface {
	FindReservations(ctx context.Context, filter ReservationFilter) ([]db.Reservation, error)
	GetReservation(ctx context.Context, id string) (*db.Reservation, error)
	GetReservationByPaymentIntent(ctx context.Context, paymentIntentID string) (*db.Reservation, error)
	CreateReservation(ctx context.Context, res *db.Reservation) error
	// UpdateReservationWindow persists start, end, duration, hash and amount.
	UpdateReservationWindow(ctx context.Context, res *db.Reservation) error
	// UpdateReservationStatus moves a reservation from one status to another.
	// It returns ErrNotFound when no reservation with that id is in status from.
	UpdateReservationStatus(ctx context.Context, id string, from, to db.ReservationStatus) error
	UpdatePayment(ctx context.Context, id, paymentIntentID, paymentStatus string) error
	// WithLotLock runs fn while holding the booking lock of one lot capacity
	// pool. Store calls made with the ctx passed to fn join the locked scope.
	WithLotLock(ctx context.Context, lotID string, vt db.VehicleType, fn func(ctx context.Context) error) error
	// LockPlate additionally locks one number plate until the enclosing
	// WithLotLock returns. It must be called with the ctx WithLotLock passed
	// to fn, after the lot lock, so bookings of one vehicle at different lots
	// run one after another.
	LockPlate(ctx context.Context, plate string) error
}

// JobTimeColumn names the timestamp a lifecycle job compares against.
type JobTimeColumn string

const (
	JobStartTime JobTimeColumn = "start_time"
	JobEndTime   JobTimeColumn = "end_time"
	JobCreatedAt JobTimeColumn = "created_at"
)

type JobStore interface {
	ReservationIDsBefore(ctx context.Context, status db.ReservationStatus, column JobTimeColumn, before time.Time) ([]string, error)
	UpdateReservationStatuses(ctx context.Context, ids []string, from, to db.ReservationStatus) (int64, error)
}

type Vendor struct {
	ID           string
	Email        string
	PasswordHash string
}

type VendorStore interface {
	GetByEmail(ctx context.Context, email string) (*Vendor, error)
	CreateVendor(ctx context.Context, email, password string) (*Vendor, error)
}

var (
	_ LotStore         = (*LotRepository)(nil)
	_ ReservationStore = (*ReservationRepository)(nil)
	_ JobStore         = (*JobRepository)(nil)
	_ VendorStore      = (*VendorRepository)(nil)

	_ LotStore         = (*MemoryStore)(nil)
	_ ReservationStore = (*MemoryStore)(nil)
	_ JobStore         = (*MemoryStore)(nil)
	_ VendorStore      = (*MemoryStore)(nil)
)
