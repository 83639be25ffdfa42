package utils

import (
	"fmt"
	"strings"
	"unicode"

	"parkspot/internal/db"
)

// vehicleTypeAliases maps the names clients send to the capacity pool they use.
// Cars and SUVs share the four-wheeler pool, bikes and scooters the two-wheeler one.
var vehicleTypeAliases = map[string]db.VehicleType{
	"two-wheeler":   db.TwoWheeler,
	"two_wheeler":   db.TwoWheeler,
	"twowheeler":    db.TwoWheeler,
	"bike":          db.TwoWheeler,
	"motorcycle":    db.TwoWheeler,
	"scooter":       db.TwoWheeler,
	"four-wheeler":  db.FourWheeler,
	"four_wheeler":  db.FourWheeler,
	"fourwheeler":   db.FourWheeler,
	"car":           db.FourWheeler,
	"suv":           db.FourWheeler,
	"heavy-vehicle": db.HeavyVehicle,
	"heavy_vehicle": db.HeavyVehicle,
	"heavyvehicle":  db.HeavyVehicle,
	"truck":         db.HeavyVehicle,
	"bus":           db.HeavyVehicle,
}

// ParseVehicleType resolves a client supplied vehicle type name to its pool.
func ParseVehicleType(name string) (db.VehicleType, error) {
	vt, ok := vehicleTypeAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("unknown vehicle type %q", name)
	}
	return vt, nil
}

// NormalizePlate uppercases a number plate and strips all whitespace.
func NormalizePlate(plate string) string {
	var b strings.Builder
	b.Grow(len(plate))
	for _, r := range plate {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
