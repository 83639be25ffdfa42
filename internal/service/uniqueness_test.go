package service

import (
	"context"
	"testing"

	"parkspot/internal/db"
	"parkspot/internal/entities"
)

func TestGenerateReservationHash(t *testing.T) {
	h := GenerateReservationHash("ka 01 ab 1234", at(9), at(11), "lot-1")
	if len(h) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(h))
	}
	if h != GenerateReservationHash("KA01AB1234", at(9), at(11), "lot-1") {
		t.Fatal("plate normalization should not change the hash")
	}
	for name, other := range map[string]string{
		"lot":   GenerateReservationHash("KA01AB1234", at(9), at(11), "lot-2"),
		"start": GenerateReservationHash("KA01AB1234", at(8), at(11), "lot-1"),
		"end":   GenerateReservationHash("KA01AB1234", at(9), at(12), "lot-1"),
		"plate": GenerateReservationHash("KA01AB1235", at(9), at(11), "lot-1"),
	} {
		if other == h {
			t.Errorf("changing %s should change the hash", name)
		}
	}
}

func TestValidateReservationUniqueness(t *testing.T) {
	existing := []db.Reservation{
		{ID: "r1", ParkingLotID: "lot-1", UserID: "u1", NumberPlate: "KA01AB1234", VehicleType: db.FourWheeler,
			StartTime: at(9), EndTime: at(11), Status: db.StatusConfirmed},
		{ID: "r2", ParkingLotID: "lot-2", UserID: "u2", NumberPlate: "MH12XY0001", VehicleType: db.FourWheeler,
			StartTime: at(9), EndTime: at(11), Status: db.StatusPending},
		{ID: "r3", ParkingLotID: "lot-1", UserID: "u3", NumberPlate: "DL05CC9999", VehicleType: db.FourWheeler,
			StartTime: at(9), EndTime: at(11), Status: db.StatusCancelled},
	}

	tests := []struct {
		name     string
		query    entities.UniquenessQuery
		valid    bool
		kind     entities.ConflictType
		conflict string
	}{
		{
			name:  "exact duplicate with unnormalized plate",
			query: entities.UniquenessQuery{NumberPlate: "ka01 ab1234", StartTime: at(9), EndTime: at(11), ParkingLotID: "lot-1", UserID: "u9"},
			kind:  entities.ConflictExactDuplicate, conflict: "r1",
		},
		{
			name:  "same plate overlapping at another lot",
			query: entities.UniquenessQuery{NumberPlate: "MH12XY0001", StartTime: at(10), EndTime: at(12), ParkingLotID: "lot-1", UserID: "u9"},
			kind:  entities.ConflictTimeOverlap, conflict: "r2",
		},
		{
			name:  "same user same lot different vehicle",
			query: entities.UniquenessQuery{NumberPlate: "KA99ZZ0000", StartTime: at(10), EndTime: at(12), ParkingLotID: "lot-1", UserID: "u1"},
			kind:  entities.ConflictUserDuplicate, conflict: "r1",
		},
		{
			name:  "same user at another lot",
			query: entities.UniquenessQuery{NumberPlate: "KA99ZZ0000", StartTime: at(10), EndTime: at(12), ParkingLotID: "lot-2", UserID: "u1"},
			valid: true,
		},
		{
			name:  "touching window",
			query: entities.UniquenessQuery{NumberPlate: "KA01AB1234", StartTime: at(11), EndTime: at(13), ParkingLotID: "lot-1", UserID: "u1"},
			valid: true,
		},
		{
			name:  "own reservation excluded",
			query: entities.UniquenessQuery{NumberPlate: "KA01AB1234", StartTime: at(9), EndTime: at(11), ParkingLotID: "lot-1", UserID: "u1", ExcludeID: "r1"},
			valid: true,
		},
		{
			name:  "cancelled reservation ignored",
			query: entities.UniquenessQuery{NumberPlate: "DL05CC9999", StartTime: at(9), EndTime: at(11), ParkingLotID: "lot-1", UserID: "u3"},
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			seed(t, store, existing...)
			got := NewUniquenessValidator(store).ValidateReservationUniqueness(context.Background(), tt.query)
			if got.IsValid != tt.valid || got.Type != tt.kind {
				t.Fatalf("got valid=%v type=%s, want valid=%v type=%s", got.IsValid, got.Type, tt.valid, tt.kind)
			}
			if tt.conflict != "" {
				if got.ConflictingReservation == nil || got.ConflictingReservation.ID != tt.conflict {
					t.Fatalf("conflicting reservation = %+v, want %s", got.ConflictingReservation, tt.conflict)
				}
			}
		})
	}
}

func TestValidateReservationUniquenessFailsClosed(t *testing.T) {
	store := newStore(t)
	got := NewUniquenessValidator(failingReservations{store}).ValidateReservationUniqueness(context.Background(), entities.UniquenessQuery{
		NumberPlate: "KA01AB1234", StartTime: at(9), EndTime: at(11), ParkingLotID: "lot-1",
	})
	if got.IsValid || got.Type != entities.ConflictValidationError {
		t.Fatalf("got %+v, want VALIDATION_ERROR", got)
	}
}
