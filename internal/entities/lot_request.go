package entities

import "parkspot/internal/db"

// LotRequest is the body of vendor lot create and update calls.
type LotRequest struct {
	Name           string                   `json:"name" validate:"required"`
	Address        string                   `json:"address" validate:"required"`
	Timezone       string                   `json:"timezone" validate:"required,timezone"`
	Active         *bool                    `json:"active"`
	Capacity       map[db.VehicleType]int   `json:"capacity" validate:"required,min=1,dive,gte=0"`
	HourlyRates    map[db.VehicleType]int64 `json:"hourly_rates" validate:"dive,gte=0"`
	OperatingHours db.OperatingHours        `json:"operating_hours"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginResponse struct {
	Token string `json:"token"`
}
