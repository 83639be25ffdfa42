package db

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

type VehicleType string

const (
	TwoWheeler   VehicleType = "two-wheeler"
	FourWheeler  VehicleType = "four-wheeler"
	HeavyVehicle VehicleType = "heavy-vehicle"
)

// VehicleTypes lists every capacity pool a lot can expose.
var VehicleTypes = []VehicleType{TwoWheeler, FourWheeler, HeavyVehicle}

func (v VehicleType) Valid() bool {
	switch v {
	case TwoWheeler, FourWheeler, HeavyVehicle:
		return true
	}
	return false
}

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusActive    ReservationStatus = "active"
	StatusCompleted ReservationStatus = "completed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusNoShow    ReservationStatus = "no_show"
)

// NonTerminalStatuses are the statuses that consume capacity and take part in
// overlap and duplicate checks.
var NonTerminalStatuses = []ReservationStatus{StatusPending, StatusConfirmed, StatusActive}

var transitions = map[ReservationStatus][]ReservationStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusActive, StatusCancelled, StatusNoShow},
	StatusActive:    {StatusCompleted},
}

func (s ReservationStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// CanTransitionTo reports whether a reservation may move from s to next.
// Reservations only move forward; terminal statuses never change again.
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// DaySchedule holds one weekday entry of a lot's operating hours. Open and
// Close are "HH:MM" in the lot's timezone.
type DaySchedule struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	IsOpen bool   `json:"is_open"`
}

// OperatingHours is keyed by lowercase weekday name ("monday", "sunday", ...).
type OperatingHours map[string]DaySchedule

func WeekdayKey(day time.Weekday) string {
	return strings.ToLower(day.String())
}

func (h OperatingHours) For(day time.Weekday) (DaySchedule, bool) {
	if h == nil {
		return DaySchedule{}, false
	}
	s, ok := h[WeekdayKey(day)]
	return s, ok
}

type ParkingLot struct {
	ID             string                `json:"id"`
	VendorID       string                `json:"vendor_id"`
	Name           string                `json:"name"`
	Address        string                `json:"address"`
	Timezone       string                `json:"timezone"`
	Active         bool                  `json:"active"`
	Capacity       map[VehicleType]int   `json:"capacity"`
	HourlyRates    map[VehicleType]int64 `json:"hourly_rates"`
	OperatingHours OperatingHours        `json:"operating_hours"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// zones caches resolved timezones by name for the life of the process.
var zones sync.Map

// LoadZone resolves an IANA timezone name, reading the zone database only the
// first time a name is seen.
func LoadZone(name string) (*time.Location, error) {
	if cached, ok := zones.Load(name); ok {
		return cached.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	zones.Store(name, loc)
	return loc, nil
}

// Zone returns the lot's timezone. An empty timezone means UTC. An unknown one
// yields UTC together with an error so callers can report the misconfiguration.
func (l *ParkingLot) Zone() (*time.Location, error) {
	if l.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := LoadZone(l.Timezone)
	if err != nil {
		return time.UTC, fmt.Errorf("parking lot %s: unknown timezone %q: %w", l.ID, l.Timezone, err)
	}
	return loc, nil
}

// Location returns the lot's timezone, falling back to UTC when unset or unknown.
func (l *ParkingLot) Location() *time.Location {
	loc, _ := l.Zone()
	return loc
}

func (l *ParkingLot) CapacityFor(vt VehicleType) int {
	return l.Capacity[vt]
}

type Reservation struct {
	ID              string            `json:"id"`
	ParkingLotID    string            `json:"parking_lot_id"`
	UserID          string            `json:"user_id"`
	VehicleType     VehicleType       `json:"vehicle_type"`
	NumberPlate     string            `json:"number_plate"`
	StartTime       time.Time         `json:"start_time"`
	EndTime         time.Time         `json:"end_time"`
	DurationHours   int               `json:"duration_hours"`
	Status          ReservationStatus `json:"status"`
	VehicleTimeHash string            `json:"-"`
	FullName        string            `json:"full_name"`
	Email           string            `json:"email"`
	Phone           string            `json:"phone"`
	AmountCents     int64             `json:"amount_cents"`
	Currency        string            `json:"currency"`
	PaymentIntentID string            `json:"payment_intent_id,omitempty"`
	PaymentStatus   string            `json:"payment_status"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// DurationHours is the length of [start, end) in hours, rounded up.
func DurationHours(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours()))
}
