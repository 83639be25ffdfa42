package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"parkspot/internal/db"
)

func TestMemoryStoreHashUniqueAmongActive(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	first := &db.Reservation{ID: "r1", VehicleTimeHash: "h", Status: db.StatusConfirmed}
	if err := m.CreateReservation(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.CreateReservation(ctx, &db.Reservation{ID: "r2", VehicleTimeHash: "h", Status: db.StatusPending}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := m.UpdateReservationStatus(ctx, "r1", db.StatusConfirmed, db.StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := m.CreateReservation(ctx, &db.Reservation{ID: "r2", VehicleTimeHash: "h", Status: db.StatusPending}); err != nil {
		t.Fatalf("hash of a cancelled reservation should be reusable: %v", err)
	}
}

func TestMemoryStoreUpdateStatusChecksFrom(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	_ = m.CreateReservation(ctx, &db.Reservation{ID: "r1", Status: db.StatusPending})
	if err := m.UpdateReservationStatus(ctx, "r1", db.StatusConfirmed, db.StatusActive); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreFindOverlap(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	add := func(id string, from, to int, status db.ReservationStatus) {
		_ = m.CreateReservation(ctx, &db.Reservation{
			ID: id, ParkingLotID: "lot", VehicleType: db.FourWheeler, Status: status,
			StartTime: base.Add(time.Duration(from) * time.Hour), EndTime: base.Add(time.Duration(to) * time.Hour),
		})
	}
	add("touch-before", 6, 9, db.StatusConfirmed)
	add("inside", 9, 10, db.StatusConfirmed)
	add("cancelled", 9, 11, db.StatusCancelled)
	add("touch-after", 11, 12, db.StatusActive)

	got, err := m.FindReservations(ctx, ReservationFilter{
		ParkingLotID: "lot",
		Statuses:     db.NonTerminalStatuses,
		OverlapStart: base.Add(9 * time.Hour),
		OverlapEnd:   base.Add(11 * time.Hour),
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].ID != "inside" {
		t.Fatalf("expected only the inside reservation, got %+v", got)
	}
}

func TestMemoryStoreLotLockSerializes(t *testing.T) {
	m := NewMemoryStore()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		running int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.WithLotLock(context.Background(), "lot", db.FourWheeler, func(ctx context.Context) error {
				mu.Lock()
				running++
				if running > maxSeen {
					maxSeen = running
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("expected one holder at a time, saw %d", maxSeen)
	}
}

func TestMemoryStorePlateLockSpansLots(t *testing.T) {
	m := NewMemoryStore()
	if err := m.LockPlate(context.Background(), "KA01"); !errors.Is(err, ErrNoLockScope) {
		t.Fatalf("expected ErrNoLockScope outside a lot lock, got %v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		running int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lot := fmt.Sprintf("lot-%d", i)
			err := m.WithLotLock(context.Background(), lot, db.FourWheeler, func(ctx context.Context) error {
				if err := m.LockPlate(ctx, "KA01"); err != nil {
					return err
				}
				mu.Lock()
				running++
				if running > maxSeen {
					maxSeen = running
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("WithLotLock: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("expected one holder of the plate at a time, saw %d", maxSeen)
	}
}

func TestMemoryStoreVendors(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	v, err := m.CreateVendor(ctx, " Owner@Example.com ", "secret-pass")
	if err != nil {
		t.Fatalf("create vendor: %v", err)
	}
	if v.Email != "owner@example.com" {
		t.Fatalf("expected normalized email, got %q", v.Email)
	}
	if _, err := m.CreateVendor(ctx, "owner@example.com", "other"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := m.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
