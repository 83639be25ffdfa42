package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"parkspot/internal/db"
)

const lotColumns = `id, vendor_id, name, address, timezone, active, capacity, hourly_rates, operating_hours, created_at, updated_at`

type LotRepository struct {
	DB *sql.DB
}

func NewLotRepository(db *sql.DB) *LotRepository {
	return &LotRepository{DB: db}
}

func (r *LotRepository) GetLot(ctx context.Context, id string) (*db.ParkingLot, error) {
	row := conn(ctx, r.DB).QueryRowContext(ctx, `SELECT `+lotColumns+` FROM parking_lots WHERE id = $1`, id)
	lot, err := scanLot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("parking lot %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("error querying parking lot %s: %w", id, err)
	}
	return lot, nil
}

func (r *LotRepository) ListLots(ctx context.Context, filter LotFilter) ([]db.ParkingLot, error) {
	query := `SELECT ` + lotColumns + ` FROM parking_lots WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if filter.VendorID != "" {
		query += " AND vendor_id = $" + strconv.Itoa(idx)
		args = append(args, filter.VendorID)
		idx++
	}
	if filter.ActiveOnly {
		query += " AND active = TRUE"
	}
	query += " ORDER BY name"

	rows, err := conn(ctx, r.DB).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying parking lots: %w", err)
	}
	defer rows.Close()

	var lots []db.ParkingLot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning parking lot: %w", err)
		}
		lots = append(lots, *lot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating parking lots: %w", err)
	}
	return lots, nil
}

func (r *LotRepository) CreateLot(ctx context.Context, lot *db.ParkingLot) error {
	capacity, rates, hours, err := encodeLotDocuments(lot)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO parking_lots (id, vendor_id, name, address, timezone, active, capacity, hourly_rates, operating_hours, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = conn(ctx, r.DB).ExecContext(ctx, query,
		lot.ID, lot.VendorID, lot.Name, lot.Address, lot.Timezone, lot.Active,
		capacity, rates, hours, lot.CreatedAt, lot.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("parking lot %s: %w", lot.ID, ErrDuplicate)
		}
		return fmt.Errorf("error inserting parking lot: %w", err)
	}
	return nil
}

func (r *LotRepository) UpdateLot(ctx context.Context, lot *db.ParkingLot) error {
	capacity, rates, hours, err := encodeLotDocuments(lot)
	if err != nil {
		return err
	}
	query := `
		UPDATE parking_lots
		SET name = $2,
			address = $3,
			timezone = $4,
			active = $5,
			capacity = $6,
			hourly_rates = $7,
			operating_hours = $8,
			updated_at = $9
		WHERE id = $1`
	result, err := conn(ctx, r.DB).ExecContext(ctx, query,
		lot.ID, lot.Name, lot.Address, lot.Timezone, lot.Active,
		capacity, rates, hours, lot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error updating parking lot %s: %w", lot.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("parking lot %s: %w", lot.ID, ErrNotFound)
	}
	return nil
}

// encodeLotDocuments renders the JSONB columns. They are passed as strings:
// lib/pq would send []byte as bytea.
func encodeLotDocuments(lot *db.ParkingLot) (capacity, rates, hours string, err error) {
	c, err := json.Marshal(lot.Capacity)
	if err != nil {
		return "", "", "", fmt.Errorf("encode capacity: %w", err)
	}
	rt, err := json.Marshal(lot.HourlyRates)
	if err != nil {
		return "", "", "", fmt.Errorf("encode hourly rates: %w", err)
	}
	h, err := json.Marshal(lot.OperatingHours)
	if err != nil {
		return "", "", "", fmt.Errorf("encode operating hours: %w", err)
	}
	return string(c), string(rt), string(h), nil
}

func scanLot(s rowScanner) (*db.ParkingLot, error) {
	var (
		lot                    db.ParkingLot
		capacity, rates, hours []byte
	)
	err := s.Scan(
		&lot.ID, &lot.VendorID, &lot.Name, &lot.Address, &lot.Timezone, &lot.Active,
		&capacity, &rates, &hours, &lot.CreatedAt, &lot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(capacity) > 0 {
		if err := json.Unmarshal(capacity, &lot.Capacity); err != nil {
			return nil, fmt.Errorf("malformed capacity for lot %s: %w", lot.ID, err)
		}
	}
	if len(rates) > 0 {
		if err := json.Unmarshal(rates, &lot.HourlyRates); err != nil {
			return nil, fmt.Errorf("malformed hourly rates for lot %s: %w", lot.ID, err)
		}
	}
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &lot.OperatingHours); err != nil {
			return nil, fmt.Errorf("malformed operating hours for lot %s: %w", lot.ID, err)
		}
	}
	return &lot, nil
}
