package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"

	"parkspot/internal/db"
)

const reservationColumns = `id, parking_lot_id, user_id, vehicle_type, number_plate, start_time, end_time,
	duration_hours, status, vehicle_time_hash, full_name, email, phone, amount_cents, currency,
	payment_intent_id, payment_status, created_at, updated_at`

type ReservationRepository struct {
	DB *sql.DB
}

func NewReservationRepository(db *sql.DB) *ReservationRepository {
	return &ReservationRepository{DB: db}
}

// WithLotLock opens a transaction and takes a transaction-scoped advisory lock
// keyed on lot and vehicle type, so concurrent bookings for the same capacity
// pool run their check and insert one after another.
func (r *ReservationRepository) WithLotLock(ctx context.Context, lotID string, vt db.VehicleType, fn func(ctx context.Context) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error opening lot lock transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lotID+":"+string(vt)); err != nil {
		return fmt.Errorf("error acquiring lot lock: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing lot lock transaction: %w", err)
	}
	return nil
}

func (r *ReservationRepository) LockPlate(ctx context.Context, plate string) error {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	if !ok {
		return ErrNoLockScope
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "plate:"+plate); err != nil {
		return fmt.Errorf("error acquiring plate lock: %w", err)
	}
	return nil
}

func (r *ReservationRepository) FindReservations(ctx context.Context, f ReservationFilter) ([]db.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE 1=1`
	args := []interface{}{}
	idx := 1
	where := func(cond string, v interface{}) {
		query += " AND " + cond + " $" + strconv.Itoa(idx)
		args = append(args, v)
		idx++
	}

	if f.ParkingLotID != "" {
		where("parking_lot_id =", f.ParkingLotID)
	}
	if f.UserID != "" {
		where("user_id =", f.UserID)
	}
	if f.NumberPlate != "" {
		where("number_plate =", f.NumberPlate)
	}
	if f.VehicleTimeHash != "" {
		where("vehicle_time_hash =", f.VehicleTimeHash)
	}
	if f.VehicleType != "" {
		where("vehicle_type =", string(f.VehicleType))
	}
	if f.ExcludeID != "" {
		where("id <>", f.ExcludeID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		query += " AND status = ANY($" + strconv.Itoa(idx) + ")"
		args = append(args, pq.Array(statuses))
		idx++
	}
	if f.hasOverlap() {
		// Half-open overlap: start < query end AND end > query start.
		where("start_time <", f.OverlapEnd)
		where("end_time >", f.OverlapStart)
	}
	query += " ORDER BY start_time"
	if f.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(f.Limit)
	}

	rows, err := conn(ctx, r.DB).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying reservations: %w", err)
	}
	defer rows.Close()

	var reservations []db.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning reservation: %w", err)
		}
		reservations = append(reservations, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating reservations: %w", err)
	}
	return reservations, nil
}

func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (*db.Reservation, error) {
	row := conn(ctx, r.DB).QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reservation %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("error querying reservation %s: %w", id, err)
	}
	return res, nil
}

func (r *ReservationRepository) CreateReservation(ctx context.Context, res *db.Reservation) error {
	query := `
		INSERT INTO reservations
		(id, parking_lot_id, user_id, vehicle_type, number_plate, start_time, end_time, duration_hours, status,
		 vehicle_time_hash, full_name, email, phone, amount_cents, currency, payment_intent_id, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err := conn(ctx, r.DB).ExecContext(ctx, query,
		res.ID,
		res.ParkingLotID,
		res.UserID,
		string(res.VehicleType),
		res.NumberPlate,
		res.StartTime,
		res.EndTime,
		res.DurationHours,
		string(res.Status),
		res.VehicleTimeHash,
		res.FullName,
		res.Email,
		res.Phone,
		res.AmountCents,
		res.Currency,
		res.PaymentIntentID,
		res.PaymentStatus,
		res.CreatedAt,
		res.UpdatedAt,
	)
	if err != nil {
		// reservations_active_hash_key covers non-terminal rows only.
		if isUniqueViolation(err) {
			return fmt.Errorf("reservation %s: %w", res.ID, ErrDuplicate)
		}
		return fmt.Errorf("error inserting reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepository) UpdateReservationWindow(ctx context.Context, res *db.Reservation) error {
	query := `
		UPDATE reservations
		SET start_time = $2,
			end_time = $3,
			duration_hours = $4,
			vehicle_time_hash = $5,
			amount_cents = $6,
			updated_at = $7
		WHERE id = $1`
	result, err := conn(ctx, r.DB).ExecContext(ctx, query,
		res.ID, res.StartTime, res.EndTime, res.DurationHours, res.VehicleTimeHash, res.AmountCents, res.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("reservation %s: %w", res.ID, ErrDuplicate)
		}
		return fmt.Errorf("error updating reservation %s: %w", res.ID, err)
	}
	return expectOneRow(result, "reservation "+res.ID)
}

func (r *ReservationRepository) UpdateReservationStatus(ctx context.Context, id string, from, to db.ReservationStatus) error {
	query := `UPDATE reservations SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	result, err := conn(ctx, r.DB).ExecContext(ctx, query, id, string(from), string(to), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("error updating reservation %s status: %w", id, err)
	}
	return expectOneRow(result, fmt.Sprintf("reservation %s in status %s", id, from))
}

func expectOneRow(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func scanReservation(s rowScanner) (*db.Reservation, error) {
	var (
		res         db.Reservation
		vehicleType string
		status      string
	)
	err := s.Scan(
		&res.ID, &res.ParkingLotID, &res.UserID, &vehicleType, &res.NumberPlate, &res.StartTime, &res.EndTime,
		&res.DurationHours, &status, &res.VehicleTimeHash, &res.FullName, &res.Email, &res.Phone,
		&res.AmountCents, &res.Currency, &res.PaymentIntentID, &res.PaymentStatus, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.VehicleType = db.VehicleType(vehicleType)
	res.Status = db.ReservationStatus(status)
	return &res, nil
}
