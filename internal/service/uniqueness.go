package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"parkspot/internal/db"
	"parkspot/internal/entities"
	"parkspot/internal/logging"
	"parkspot/internal/metrics"
	"parkspot/internal/repository"
	"parkspot/internal/utils"
)

// GenerateReservationHash fingerprints plate, window and lot. Plates are
// normalized first, so "ka 01 ab 1234" and "KA01AB1234" collide.
func GenerateReservationHash(plate string, start, end time.Time, lotID string) string {
	key := strings.Join([]string{
		utils.NormalizePlate(plate),
		strconv.FormatInt(start.UnixMilli(), 10),
		strconv.FormatInt(end.UnixMilli(), 10),
		lotID,
	}, "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

type UniquenessValidator struct {
	Reservations repository.ReservationStore
}

func NewUniquenessValidator(store repository.ReservationStore) *UniquenessValidator {
	return &UniquenessValidator{Reservations: store}
}

// ValidateReservationUniqueness runs the exact-duplicate, plate-overlap and
// user-duplicate checks in that order and reports the first hit. Only
// non-terminal reservations count and q.ExcludeID is ignored throughout.
func (v *UniquenessValidator) ValidateReservationUniqueness(ctx context.Context, q entities.UniquenessQuery) entities.UniquenessResult {
	plate := utils.NormalizePlate(q.NumberPlate)
	base := repository.ReservationFilter{
		Statuses:  db.NonTerminalStatuses,
		ExcludeID: q.ExcludeID,
		Limit:     1,
	}

	checks := []struct {
		kind    entities.ConflictType
		message string
		skip    bool
		filter  func(f repository.ReservationFilter) repository.ReservationFilter
	}{
		{
			kind:    entities.ConflictExactDuplicate,
			message: "an identical reservation for this vehicle already exists",
			filter: func(f repository.ReservationFilter) repository.ReservationFilter {
				f.VehicleTimeHash = GenerateReservationHash(plate, q.StartTime, q.EndTime, q.ParkingLotID)
				return f
			},
		},
		{
			kind:    entities.ConflictTimeOverlap,
			message: "this vehicle already has a reservation overlapping the requested time",
			filter: func(f repository.ReservationFilter) repository.ReservationFilter {
				f.NumberPlate = plate
				f.OverlapStart, f.OverlapEnd = q.StartTime, q.EndTime
				return f
			},
		},
		{
			kind:    entities.ConflictUserDuplicate,
			message: "you already have a reservation at this parking lot for the requested time",
			skip:    q.UserID == "",
			filter: func(f repository.ReservationFilter) repository.ReservationFilter {
				f.UserID = q.UserID
				f.ParkingLotID = q.ParkingLotID
				f.OverlapStart, f.OverlapEnd = q.StartTime, q.EndTime
				return f
			},
		},
	}

	for _, c := range checks {
		if c.skip {
			continue
		}
		found, err := v.Reservations.FindReservations(ctx, c.filter(base))
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("check", string(c.kind)).Msg("uniqueness check failed")
			metrics.UniquenessRejections.WithLabelValues(string(entities.ConflictValidationError)).Inc()
			return entities.UniquenessResult{
				Type:    entities.ConflictValidationError,
				Message: "unable to validate reservation right now",
			}
		}
		if len(found) > 0 {
			metrics.UniquenessRejections.WithLabelValues(string(c.kind)).Inc()
			return entities.UniquenessResult{
				Type:                   c.kind,
				Message:                c.message,
				ConflictingReservation: &found[0],
			}
		}
	}
	return entities.UniquenessResult{IsValid: true, Message: "reservation is unique"}
}
