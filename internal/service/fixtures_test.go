package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"parkspot/internal/db"
	"parkspot/internal/events"
	"parkspot/internal/repository"
)

// 2030-03-04 is a Monday; the day before is a Sunday.
var monday = time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)

func at(hour int) time.Time { return monday.Add(time.Duration(hour) * time.Hour) }

func newLot() *db.ParkingLot {
	return &db.ParkingLot{
		ID:       "lot-1",
		VendorID: "vendor-1",
		Name:     "Central",
		Timezone: "UTC",
		Active:   true,
		Capacity: map[db.VehicleType]int{
			db.FourWheeler:  5,
			db.TwoWheeler:   2,
			db.HeavyVehicle: 1,
		},
		HourlyRates: map[db.VehicleType]int64{
			db.FourWheeler:  5000,
			db.HeavyVehicle: 20000,
		},
		OperatingHours: db.OperatingHours{
			"sunday": {IsOpen: false},
			"monday": {Open: "06:00", Close: "22:00", IsOpen: true},
		},
	}
}

func newStore(t *testing.T, lots ...*db.ParkingLot) *repository.MemoryStore {
	t.Helper()
	store := repository.NewMemoryStore()
	for _, lot := range lots {
		if err := store.CreateLot(context.Background(), lot); err != nil {
			t.Fatalf("seed lot: %v", err)
		}
	}
	return store
}

func seed(t *testing.T, store *repository.MemoryStore, reservations ...db.Reservation) {
	t.Helper()
	for i := range reservations {
		r := reservations[i]
		if r.VehicleTimeHash == "" {
			r.VehicleTimeHash = GenerateReservationHash(r.NumberPlate, r.StartTime, r.EndTime, r.ParkingLotID)
		}
		if err := store.CreateReservation(context.Background(), &r); err != nil {
			t.Fatalf("seed reservation %s: %v", r.ID, err)
		}
	}
}

func booking(id, plate string, vt db.VehicleType, from, to int, status db.ReservationStatus) db.Reservation {
	return db.Reservation{
		ID:           id,
		ParkingLotID: "lot-1",
		UserID:       "user-" + id,
		VehicleType:  vt,
		NumberPlate:  plate,
		StartTime:    at(from),
		EndTime:      at(to),
		Status:       status,
	}
}

var errStoreDown = errors.New("connection refused")

// failingReservations fails every reservation query.
type failingReservations struct {
	*repository.MemoryStore
}

func (failingReservations) FindReservations(context.Context, repository.ReservationFilter) ([]db.Reservation, error) {
	return nil, errStoreDown
}

type failingLots struct {
	*repository.MemoryStore
}

func (failingLots) GetLot(context.Context, string) (*db.ParkingLot, error) {
	return nil, errStoreDown
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ReservationEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type fakeGateway struct {
	mu        sync.Mutex
	createErr error
	cancelErr error
	created   []string
	cancelled []string
	refunded  []string
}

func (g *fakeGateway) CreatePaymentIntent(_ context.Context, res *db.Reservation) (string, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return "", "", g.createErr
	}
	g.created = append(g.created, res.ID)
	return "pi_" + res.ID, "secret_" + res.ID, nil
}

func (g *fakeGateway) CancelPaymentIntent(_ context.Context, paymentIntentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancelErr != nil {
		return g.cancelErr
	}
	g.cancelled = append(g.cancelled, paymentIntentID)
	return nil
}

func (g *fakeGateway) Refund(_ context.Context, paymentIntentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunded = append(g.refunded, paymentIntentID)
	return nil
}
