package entities

import "time"

// ReservationRequest is the POST /api/reservations body. The user comes from
// the bearer token.
type ReservationRequest struct {
	ParkingLotID string    `json:"parking_lot_id" validate:"required"`
	VehicleType  string    `json:"vehicle_type" validate:"required,vehicletype"`
	NumberPlate  string    `json:"number_plate" validate:"required,max=16"`
	FullName     string    `json:"full_name" validate:"required"`
	Email        string    `json:"email" validate:"required,email"`
	Phone        string    `json:"phone" validate:"omitempty,e164"`
	StartTime    time.Time `json:"start_time" validate:"required"`
	EndTime      time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}

// RescheduleRequest is the PUT /api/reservations/{id} body.
type RescheduleRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}
