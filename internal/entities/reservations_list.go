package entities

import "parkspot/internal/db"

type ReservationsList struct {
	Total        int              `json:"total"`
	Reservations []db.Reservation `json:"reservations"`
}
