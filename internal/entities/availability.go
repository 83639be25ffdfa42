package entities

import (
	"time"

	"parkspot/internal/db"
)

// AvailabilityReason classifies an availability decision.
type AvailabilityReason string

const (
	ReasonAvailable            AvailabilityReason = "available"
	ReasonInsufficientCapacity AvailabilityReason = "insufficient_capacity"
	ReasonNotFound             AvailabilityReason = "not_found"
	ReasonInactive             AvailabilityReason = "inactive"
	ReasonClosed               AvailabilityReason = "closed"
	ReasonInvalid              AvailabilityReason = "invalid"
	ReasonError                AvailabilityReason = "error"
)

type AvailabilityQuery struct {
	ParkingLotID string
	StartTime    time.Time
	EndTime      time.Time
	VehicleType  db.VehicleType
	// Quantity is the number of spaces wanted; 0 means 1.
	Quantity int
	// ExcludeReservationID leaves one reservation out of the occupancy count,
	// so an edited reservation does not compete with itself.
	ExcludeReservationID string
}

type AvailabilityResult struct {
	Available      bool               `json:"available"`
	AvailableSlots int                `json:"available_slots"`
	TotalCapacity  int                `json:"total_capacity"`
	OccupiedSlots  int                `json:"occupied_slots"`
	Message        string             `json:"message"`
	Reason         AvailabilityReason `json:"reason"`
}

// AvailabilityRequest is the POST /api/availability body.
type AvailabilityRequest struct {
	ParkingLotID string    `json:"parking_lot_id" validate:"required"`
	VehicleType  string    `json:"vehicle_type" validate:"required,vehicletype"`
	StartTime    time.Time `json:"start_time" validate:"required"`
	EndTime      time.Time `json:"end_time" validate:"required"`
	Quantity     int       `json:"quantity" validate:"gte=0,lte=100"`
}

type HourlyAvailability struct {
	Hour      int       `json:"hour"`
	Start     time.Time `json:"start"`
	Available int       `json:"available"`
	Occupied  int       `json:"occupied"`
	Total     int       `json:"total"`
}
