package entities

import "parkspot/internal/db"

type PriceQuote struct {
	VehicleType     db.VehicleType `json:"vehicle_type"`
	DurationHours   int            `json:"duration_hours"`
	HourlyRateCents int64          `json:"hourly_rate_cents"`
	AmountCents     int64          `json:"amount_cents"`
	Currency        string         `json:"currency"`
}

// BookingResponse is returned when a reservation is created or rescheduled.
// ClientSecret is set when the client must complete a card payment.
type BookingResponse struct {
	Reservation  *db.Reservation `json:"reservation"`
	Price        PriceQuote      `json:"price"`
	ClientSecret string          `json:"client_secret,omitempty"`
}
