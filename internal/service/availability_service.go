package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parkspot/internal/availability"
	"parkspot/internal/db"
	"parkspot/internal/entities"
	"parkspot/internal/logging"
	"parkspot/internal/metrics"
	"parkspot/internal/repository"
)

const dateLayout = "2006-01-02"

type AvailabilityService struct {
	Lots         repository.LotStore
	Reservations repository.ReservationStore
}

func NewAvailabilityService(lots repository.LotStore, reservations repository.ReservationStore) *AvailabilityService {
	return &AvailabilityService{Lots: lots, Reservations: reservations}
}

// CheckAvailability decides whether q.Quantity spaces are free for the whole
// window. It never returns an error: lookup failures yield an unavailable
// result with reason "error".
func (s *AvailabilityService) CheckAvailability(ctx context.Context, q entities.AvailabilityQuery) (res entities.AvailabilityResult) {
	started := time.Now()
	defer func() {
		metrics.RecordAvailability(string(res.Reason), time.Since(started))
	}()

	quantity := q.Quantity
	if quantity == 0 {
		quantity = 1
	}
	switch {
	case q.ParkingLotID == "":
		return unavailable(entities.ReasonInvalid, "parking lot id is required")
	case !q.VehicleType.Valid():
		return unavailable(entities.ReasonInvalid, fmt.Sprintf("unknown vehicle type %q", q.VehicleType))
	case !q.EndTime.After(q.StartTime):
		return unavailable(entities.ReasonInvalid, "end time must be after start time")
	case quantity < 0:
		return unavailable(entities.ReasonInvalid, "quantity must not be negative")
	}

	lot, err := s.Lots.GetLot(ctx, q.ParkingLotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return unavailable(entities.ReasonNotFound, "parking lot not found")
		}
		logging.Ctx(ctx).Error().Err(err).Str("lot_id", q.ParkingLotID).Msg("availability: lot lookup failed")
		return unavailable(entities.ReasonError, "unable to check availability right now")
	}
	if !lot.Active {
		return unavailable(entities.ReasonInactive, "parking lot is not accepting reservations")
	}

	day := q.StartTime.In(lotLocation(ctx, lot)).Weekday()
	if sched, ok := lot.OperatingHours.For(day); ok && !sched.IsOpen {
		return unavailable(entities.ReasonClosed, fmt.Sprintf("parking lot is closed on %s", day))
	}

	window := availability.Interval{Start: q.StartTime, End: q.EndTime}
	occupied, err := s.peak(ctx, lot.ID, q.VehicleType, q.ExcludeReservationID, window, []availability.Interval{window})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("lot_id", lot.ID).Msg("availability: reservation query failed")
		return unavailable(entities.ReasonError, "unable to check availability right now")
	}

	total := lot.CapacityFor(q.VehicleType)
	free := max(total-occupied[0], 0)
	res = entities.AvailabilityResult{
		Available:      free >= quantity,
		AvailableSlots: free,
		TotalCapacity:  total,
		OccupiedSlots:  occupied[0],
	}
	if res.Available {
		res.Reason = entities.ReasonAvailable
		res.Message = fmt.Sprintf("%d of %d %s spaces available", free, total, q.VehicleType)
	} else {
		res.Reason = entities.ReasonInsufficientCapacity
		res.Message = fmt.Sprintf("only %d of %d %s spaces available, %d requested", free, total, q.VehicleType, quantity)
	}
	return res
}

// GetHourlyAvailability returns 24 buckets for the lot-local calendar day date
// (YYYY-MM-DD). On lookup failure it returns an empty slice and the error.
func (s *AvailabilityService) GetHourlyAvailability(ctx context.Context, lotID, date string, vt db.VehicleType) ([]entities.HourlyAvailability, error) {
	if !vt.Valid() {
		return []entities.HourlyAvailability{}, fmt.Errorf("%w: unknown vehicle type %q", ErrInvalidRequest, vt)
	}
	lot, err := s.Lots.GetLot(ctx, lotID)
	if err != nil {
		return []entities.HourlyAvailability{}, err
	}
	loc := lotLocation(ctx, lot)
	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return []entities.HourlyAvailability{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidRequest)
	}

	y, m, d := day.Date()
	buckets := make([]availability.Interval, 24)
	for h := range buckets {
		buckets[h] = availability.Interval{
			Start: time.Date(y, m, d, h, 0, 0, 0, loc),
			End:   time.Date(y, m, d, h+1, 0, 0, 0, loc),
		}
	}
	dayWindow := availability.Interval{Start: buckets[0].Start, End: buckets[23].End}
	occupied, err := s.peak(ctx, lot.ID, vt, "", dayWindow, buckets)
	if err != nil {
		return []entities.HourlyAvailability{}, err
	}

	total := lot.CapacityFor(vt)
	out := make([]entities.HourlyAvailability, 24)
	for h, b := range buckets {
		out[h] = entities.HourlyAvailability{
			Hour:      h,
			Start:     b.Start,
			Available: max(total-occupied[h], 0),
			Occupied:  occupied[h],
			Total:     total,
		}
	}
	return out, nil
}

// peak loads the non-terminal reservations of one capacity pool overlapping
// span once, then computes the peak concurrency inside each window.
func (s *AvailabilityService) peak(ctx context.Context, lotID string, vt db.VehicleType, excludeID string, span availability.Interval, windows []availability.Interval) ([]int, error) {
	reservations, err := s.Reservations.FindReservations(ctx, repository.ReservationFilter{
		ParkingLotID: lotID,
		VehicleType:  vt,
		Statuses:     db.NonTerminalStatuses,
		OverlapStart: span.Start,
		OverlapEnd:   span.End,
		ExcludeID:    excludeID,
	})
	if err != nil {
		return nil, err
	}
	intervals := make([]availability.Interval, 0, len(reservations))
	for _, r := range reservations {
		if r.VehicleType != vt || r.ID == excludeID {
			continue
		}
		intervals = append(intervals, availability.Interval{Start: r.StartTime, End: r.EndTime})
	}
	out := make([]int, len(windows))
	for i, w := range windows {
		out[i] = availability.PeakConcurrency(w, intervals)
	}
	return out, nil
}

func unavailable(reason entities.AvailabilityReason, msg string) entities.AvailabilityResult {
	return entities.AvailabilityResult{Reason: reason, Message: msg}
}

// lotLocation returns the lot's timezone, logging when an unknown zone falls
// back to UTC.
func lotLocation(ctx context.Context, lot *db.ParkingLot) *time.Location {
	loc, err := lot.Zone()
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("lot_id", lot.ID).Msg("availability: using UTC for lot")
	}
	return loc
}
