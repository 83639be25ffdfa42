package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"parkspot/internal/db"
	"parkspot/internal/entities"
	"parkspot/internal/repository"
)

type LotService struct {
	Repo repository.LotStore
}

func NewLotService(repo repository.LotStore) *LotService {
	return &LotService{Repo: repo}
}

func (s *LotService) ListLots(ctx context.Context, filter repository.LotFilter) ([]db.ParkingLot, error) {
	lots, err := s.Repo.ListLots(ctx, filter)
	if err != nil {
		return nil, err
	}
	if lots == nil {
		lots = []db.ParkingLot{}
	}
	return lots, nil
}

func (s *LotService) GetLot(ctx context.Context, id string) (*db.ParkingLot, error) {
	return s.Repo.GetLot(ctx, id)
}

func (s *LotService) CreateLot(ctx context.Context, vendorID string, req entities.LotRequest) (*db.ParkingLot, error) {
	if err := validateLot(req); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	lot := &db.ParkingLot{
		ID:             uuid.NewString(),
		VendorID:       vendorID,
		Name:           req.Name,
		Address:        req.Address,
		Timezone:       req.Timezone,
		Active:         req.Active == nil || *req.Active,
		Capacity:       req.Capacity,
		HourlyRates:    req.HourlyRates,
		OperatingHours: normalizeHours(req.OperatingHours),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Repo.CreateLot(ctx, lot); err != nil {
		return nil, err
	}
	return lot, nil
}

// UpdateLot replaces the lot's settings. Lowering capacity never touches
// existing reservations; later checks simply see less room.
func (s *LotService) UpdateLot(ctx context.Context, vendorID, id string, req entities.LotRequest) (*db.ParkingLot, error) {
	if err := validateLot(req); err != nil {
		return nil, err
	}
	lot, err := s.Repo.GetLot(ctx, id)
	if err != nil {
		return nil, err
	}
	if lot.VendorID != vendorID {
		return nil, fmt.Errorf("%w: parking lot %s", ErrForbidden, id)
	}
	lot.Name = req.Name
	lot.Address = req.Address
	lot.Timezone = req.Timezone
	if req.Active != nil {
		lot.Active = *req.Active
	}
	lot.Capacity = req.Capacity
	lot.HourlyRates = req.HourlyRates
	lot.OperatingHours = normalizeHours(req.OperatingHours)
	lot.UpdatedAt = time.Now().UTC()
	if err := s.Repo.UpdateLot(ctx, lot); err != nil {
		return nil, err
	}
	return lot, nil
}

func validateLot(req entities.LotRequest) error {
	if _, err := db.LoadZone(req.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidRequest, req.Timezone)
	}
	for vt := range req.Capacity {
		if !vt.Valid() {
			return fmt.Errorf("%w: unknown vehicle type %q in capacity", ErrInvalidRequest, vt)
		}
	}
	for vt := range req.HourlyRates {
		if !vt.Valid() {
			return fmt.Errorf("%w: unknown vehicle type %q in hourly rates", ErrInvalidRequest, vt)
		}
	}
	weekdays := map[string]bool{}
	for d := time.Sunday; d <= time.Saturday; d++ {
		weekdays[db.WeekdayKey(d)] = true
	}
	for day := range req.OperatingHours {
		if !weekdays[strings.ToLower(day)] {
			return fmt.Errorf("%w: unknown weekday %q in operating hours", ErrInvalidRequest, day)
		}
	}
	return nil
}

func normalizeHours(h db.OperatingHours) db.OperatingHours {
	if h == nil {
		return nil
	}
	out := make(db.OperatingHours, len(h))
	for day, sched := range h {
		out[strings.ToLower(day)] = sched
	}
	return out
}
