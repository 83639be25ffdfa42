package entities

import (
	"time"

	"parkspot/internal/db"
)

type ConflictType string

const (
	ConflictExactDuplicate  ConflictType = "EXACT_DUPLICATE"
	ConflictTimeOverlap     ConflictType = "TIME_OVERLAP"
	ConflictUserDuplicate   ConflictType = "USER_DUPLICATE"
	ConflictValidationError ConflictType = "VALIDATION_ERROR"
)

type UniquenessQuery struct {
	NumberPlate  string
	StartTime    time.Time
	EndTime      time.Time
	ParkingLotID string
	UserID       string
	ExcludeID    string
}

type UniquenessResult struct {
	IsValid                bool            `json:"is_valid"`
	Type                   ConflictType    `json:"type,omitempty"`
	Message                string          `json:"message"`
	ConflictingReservation *db.Reservation `json:"conflicting_reservation,omitempty"`
}

// UniquenessRequest is the POST /api/reservations/validate body.
type UniquenessRequest struct {
	ParkingLotID string    `json:"parking_lot_id" validate:"required"`
	NumberPlate  string    `json:"number_plate" validate:"required,max=16"`
	StartTime    time.Time `json:"start_time" validate:"required"`
	EndTime      time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	ExcludeID    string    `json:"exclude_id"`
}
