package service

import (
	"context"
	"errors"
	"testing"
	_ "time/tzdata"

	"parkspot/internal/db"
	"parkspot/internal/entities"
	"parkspot/internal/repository"
)

func TestCheckAvailability(t *testing.T) {
	full := []db.Reservation{
		booking("a", "P1", db.FourWheeler, 9, 11, db.StatusConfirmed),
		booking("b", "P2", db.FourWheeler, 8, 12, db.StatusPending),
		booking("c", "P3", db.FourWheeler, 9, 11, db.StatusActive),
		booking("d", "P4", db.FourWheeler, 7, 11, db.StatusConfirmed),
		booking("e", "P5", db.FourWheeler, 9, 13, db.StatusConfirmed),
	}

	tests := []struct {
		name      string
		seed      []db.Reservation
		query     entities.AvailabilityQuery
		available bool
		slots     int
		occupied  int
		reason    entities.AvailabilityReason
	}{
		{
			name:      "empty lot",
			query:     entities.AvailabilityQuery{ParkingLotID: "lot-1", StartTime: at(9), EndTime: at(11), VehicleType: db.FourWheeler},
			available: true, slots: 5, occupied: 0, reason: entities.ReasonAvailable,
		},
		{
			name:      "capacity boundary",
			seed:      full,
			query:     entities.AvailabilityQuery{ParkingLotID: "lot-1", StartTime: at(9), EndTime: at(11), VehicleType: db.FourWheeler, Quantity: 1},
			available: false, slots: 0, occupied: 5, reason: entities.ReasonInsufficientCapacity,
		},
		{
			name:      "excluded reservation frees its space",
			seed:      full,
			query:     entities.AvailabilityQuery{ParkingLotID: "lot-1", StartTime: at(9), EndTime: at(11), VehicleType: db.FourWheeler, ExcludeReservationID: "a"},
			available: true, slots: 1, occupied: 4, reason: entities.ReasonAvailable,
		},
		{
			name: "back to back reservations share a space",
			seed: []db.Reservation{
				booking("a", "P1", db.FourWheeler, 9, 10, db.StatusConfirmed),
				booking("b", "P2", db.FourWheeler, 10, 11, db.StatusConfirmed),
			},
			query:     entities.AvailabilityQuery{ParkingLotID: "lot-1", StartTime: at(9), EndTime: at(11), VehicleType: db.FourWheeler},
			available: true, slots: 4, occupied: 1, reason: entities.ReasonAvailable,
		},
		{
			name: "touching reservation outside the window",
			seed: []db.Reservation{
				booking("a", "P1", db.FourWheeler, 7, 9, db.StatusConfirmed),
			},
			query:     entities.AvailabilityQuery{ParkingLotID: "lot-1", StartTime: at(9), EndTime: at(11), VehicleType: db.FourWheeler},
			available: true, slots: 5, occupied: 0, reason: entities.ReasonAvailable,
		},
		{
			name: "other vehicle types do not count",
			seed: []db.Reservation{
				booking("a", "B1", db.TwoWheeler, 9, 11, db.StatusConfirmed),
				booking("b", "B2", db.TwoWheeler, 9, 11, db.StatusConfirmed),
			},
			query:     entities.AvailabilityQuery{ParkingLotID: "lot-1", StartTime: at(9), EndTime: at(11), VehicleType: db.FourWheeler},
			available: true, slots: 5, occupied: 0, reason: entities.ReasonAvailable,
		},
		{
			name: "terminal reservations do not count",
			seed: []db.Reservation{
				booking("a", "P1", db.HeavyVehicle, 9, 11, db.StatusCancelled),
				booking("b", "P2", db.HeavyVehicle, 9, 11, db.StatusCompleted),
				booking("c", "P3", db.HeavyVehicle, 9, 11, db.StatusNoShow),
			},
			query:     entities.AvailabilityQuery{ParkingLotID: "lot-1", StartTime: at(9), EndTime: at(11), VehicleType: db.HeavyVehicle},
			available: true, slots: 1, occupied: 0, reason: entities.ReasonAvailable,
		},
		{
			name: "quantity above free slots",
			seed: []db.Reservation{
				booking("a", "B1", db.TwoWheeler, 9, 11, db.StatusConfirmed),
			},
			query:     entities.AvailabilityQuery{ParkingLotID: "lot-1", StartTime: at(9), EndTime: at(11), VehicleType: db.TwoWheeler, Quantity: 2},
			available: false, slots: 1, occupied: 1, reason: entities.ReasonInsufficientCapacity,
		},
		{
			name:   "closed on sunday",
			query:  entities.AvailabilityQuery{ParkingLotID: "lot-1", StartTime: at(-14), EndTime: at(-12), VehicleType: db.FourWheeler},
			reason: entities.ReasonClosed,
		},
		{
			name:   "unknown lot",
			query:  entities.AvailabilityQuery{ParkingLotID: "nope", StartTime: at(9), EndTime: at(11), VehicleType: db.FourWheeler},
			reason: entities.ReasonNotFound,
		},
		{
			name:   "empty window",
			query:  entities.AvailabilityQuery{ParkingLotID: "lot-1", StartTime: at(9), EndTime: at(9), VehicleType: db.FourWheeler},
			reason: entities.ReasonInvalid,
		},
		{
			name:   "negative quantity",
			query:  entities.AvailabilityQuery{ParkingLotID: "lot-1", StartTime: at(9), EndTime: at(10), VehicleType: db.FourWheeler, Quantity: -1},
			reason: entities.ReasonInvalid,
		},
		{
			name:   "unknown vehicle type",
			query:  entities.AvailabilityQuery{ParkingLotID: "lot-1", StartTime: at(9), EndTime: at(10), VehicleType: "hovercraft"},
			reason: entities.ReasonInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t, newLot())
			seed(t, store, tt.seed...)
			svc := NewAvailabilityService(store, store)

			got := svc.CheckAvailability(context.Background(), tt.query)
			if got.Reason != tt.reason {
				t.Fatalf("reason = %s, want %s (%s)", got.Reason, tt.reason, got.Message)
			}
			if got.Available != tt.available || got.AvailableSlots != tt.slots || got.OccupiedSlots != tt.occupied {
				t.Fatalf("got %+v, want available=%v slots=%d occupied=%d", got, tt.available, tt.slots, tt.occupied)
			}
			if got.Message == "" {
				t.Fatal("result must carry a message")
			}
		})
	}
}

func TestCheckAvailabilityInactiveLot(t *testing.T) {
	lot := newLot()
	lot.Active = false
	store := newStore(t, lot)
	got := NewAvailabilityService(store, store).CheckAvailability(context.Background(), entities.AvailabilityQuery{
		ParkingLotID: "lot-1", StartTime: at(9), EndTime: at(10), VehicleType: db.FourWheeler,
	})
	if got.Available || got.Reason != entities.ReasonInactive {
		t.Fatalf("got %+v", got)
	}
}

func TestCheckAvailabilityClosedDaySkipsReservationQuery(t *testing.T) {
	store := newStore(t, newLot())
	svc := NewAvailabilityService(store, failingReservations{store})
	got := svc.CheckAvailability(context.Background(), entities.AvailabilityQuery{
		ParkingLotID: "lot-1", StartTime: at(-14), EndTime: at(-12), VehicleType: db.FourWheeler,
	})
	if got.Reason != entities.ReasonClosed {
		t.Fatalf("reason = %s, want closed", got.Reason)
	}
}

func TestCheckAvailabilityUsesLotTimezone(t *testing.T) {
	lot := newLot()
	lot.Timezone = "Asia/Kolkata"
	store := newStore(t, lot)
	svc := NewAvailabilityService(store, store)

	// Sunday 20:00 UTC is Monday 01:30 in Kolkata.
	got := svc.CheckAvailability(context.Background(), entities.AvailabilityQuery{
		ParkingLotID: "lot-1", StartTime: at(-4), EndTime: at(-2), VehicleType: db.FourWheeler,
	})
	if !got.Available {
		t.Fatalf("expected available on local Monday, got %+v", got)
	}

	// Sunday 17:00 UTC is still Sunday (22:30) in Kolkata.
	got = svc.CheckAvailability(context.Background(), entities.AvailabilityQuery{
		ParkingLotID: "lot-1", StartTime: at(-7), EndTime: at(-6), VehicleType: db.FourWheeler,
	})
	if got.Reason != entities.ReasonClosed {
		t.Fatalf("expected closed on local Sunday, got %+v", got)
	}
}

func TestCheckAvailabilityFailsClosed(t *testing.T) {
	store := newStore(t, newLot())
	query := entities.AvailabilityQuery{ParkingLotID: "lot-1", StartTime: at(9), EndTime: at(11), VehicleType: db.FourWheeler}

	for name, svc := range map[string]*AvailabilityService{
		"reservations": NewAvailabilityService(store, failingReservations{store}),
		"lots":         NewAvailabilityService(failingLots{store}, store),
	} {
		t.Run(name, func(t *testing.T) {
			got := svc.CheckAvailability(context.Background(), query)
			if got.Available || got.Reason != entities.ReasonError {
				t.Fatalf("got %+v, want unavailable with reason error", got)
			}
		})
	}
}

func TestGetHourlyAvailability(t *testing.T) {
	store := newStore(t, newLot())
	seed(t, store,
		booking("a", "B1", db.TwoWheeler, 9, 11, db.StatusConfirmed),
		booking("b", "B2", db.TwoWheeler, 9, 11, db.StatusPending),
		booking("c", "B3", db.TwoWheeler, 10, 12, db.StatusActive),
		booking("d", "B4", db.TwoWheeler, 10, 12, db.StatusCancelled),
		booking("e", "P1", db.FourWheeler, 10, 12, db.StatusConfirmed),
	)
	svc := NewAvailabilityService(store, store)

	got, err := svc.GetHourlyAvailability(context.Background(), "lot-1", "2030-03-04", db.TwoWheeler)
	if err != nil {
		t.Fatalf("GetHourlyAvailability: %v", err)
	}
	if len(got) != 24 {
		t.Fatalf("expected 24 buckets, got %d", len(got))
	}
	want := map[int][2]int{ // hour -> {occupied, available}
		8:  {0, 2},
		9:  {2, 0},
		10: {3, 0},
		11: {1, 1},
		12: {0, 2},
	}
	for h, w := range want {
		b := got[h]
		if b.Hour != h || b.Occupied != w[0] || b.Available != w[1] || b.Total != 2 {
			t.Errorf("hour %d: got %+v, want occupied=%d available=%d", h, b, w[0], w[1])
		}
	}
	if !got[0].Start.Equal(at(0)) {
		t.Errorf("first bucket starts at %v", got[0].Start)
	}
}

func TestGetHourlyAvailabilityErrors(t *testing.T) {
	store := newStore(t, newLot())
	svc := NewAvailabilityService(store, store)

	got, err := svc.GetHourlyAvailability(context.Background(), "missing", "2030-03-04", db.FourWheeler)
	if !errors.Is(err, repository.ErrNotFound) || len(got) != 0 {
		t.Fatalf("got %v, %v; want empty and ErrNotFound", got, err)
	}
	if _, err := svc.GetHourlyAvailability(context.Background(), "lot-1", "04/03/2030", db.FourWheeler); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for bad date, got %v", err)
	}
	failing := NewAvailabilityService(store, failingReservations{store})
	if got, err := failing.GetHourlyAvailability(context.Background(), "lot-1", "2030-03-04", db.FourWheeler); err == nil || len(got) != 0 {
		t.Fatalf("expected empty result and error, got %v, %v", got, err)
	}
}
