package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"parkspot/internal/db"
)

func newMockRepo(t *testing.T) (*ReservationRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return NewReservationRepository(sqlDB), mock
}

func reservationRow(res db.Reservation) *sqlmock.Rows {
	cols := []string{"id", "parking_lot_id", "user_id", "vehicle_type", "number_plate", "start_time", "end_time",
		"duration_hours", "status", "vehicle_time_hash", "full_name", "email", "phone", "amount_cents", "currency",
		"payment_intent_id", "payment_status", "created_at", "updated_at"}
	return sqlmock.NewRows(cols).AddRow(
		res.ID, res.ParkingLotID, res.UserID, string(res.VehicleType), res.NumberPlate, res.StartTime, res.EndTime,
		res.DurationHours, string(res.Status), res.VehicleTimeHash, res.FullName, res.Email, res.Phone,
		res.AmountCents, res.Currency, res.PaymentIntentID, res.PaymentStatus, res.CreatedAt, res.UpdatedAt,
	)
}

func TestFindReservationsBuildsOverlapQuery(t *testing.T) {
	repo, mock := newMockRepo(t)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	want := db.Reservation{
		ID: "r1", ParkingLotID: "lot-1", VehicleType: db.FourWheeler, NumberPlate: "KA01AB1234",
		StartTime: start, EndTime: end, DurationHours: 2, Status: db.StatusConfirmed,
	}

	mock.ExpectQuery(regexp.QuoteMeta(
		`FROM reservations WHERE 1=1 AND parking_lot_id = $1 AND vehicle_type = $2 AND status = ANY($3) AND start_time < $4 AND end_time > $5 ORDER BY start_time`,
	)).
		WithArgs("lot-1", "four-wheeler", sqlmock.AnyArg(), end, start).
		WillReturnRows(reservationRow(want))

	got, err := repo.FindReservations(context.Background(), ReservationFilter{
		ParkingLotID: "lot-1",
		VehicleType:  db.FourWheeler,
		Statuses:     db.NonTerminalStatuses,
		OverlapStart: start,
		OverlapEnd:   end,
	})
	if err != nil {
		t.Fatalf("FindReservations: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r1" || got[0].Status != db.StatusConfirmed || got[0].VehicleType != db.FourWheeler {
		t.Fatalf("unexpected reservations: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetReservationNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM reservations WHERE id = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetReservation(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateReservationMapsUniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO reservations`)).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.CreateReservation(context.Background(), &db.Reservation{ID: "r1", Status: db.StatusPending})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestUpdateReservationStatusRequiresFromStatus(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE reservations SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`)).
		WithArgs("r1", "confirmed", "active", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateReservationStatus(context.Background(), "r1", db.StatusConfirmed, db.StatusActive)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWithLotLockRunsInsideTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs("lot-1:four-wheeler").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO reservations`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.WithLotLock(context.Background(), "lot-1", db.FourWheeler, func(ctx context.Context) error {
		return repo.CreateReservation(ctx, &db.Reservation{ID: "r1", Status: db.StatusPending})
	})
	if err != nil {
		t.Fatalf("WithLotLock: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestWithLotLockRollsBackOnError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	boom := errors.New("capacity exhausted")
	err := repo.WithLotLock(context.Background(), "lot-1", db.TwoWheeler, func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLockPlateJoinsLotTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)
	if err := repo.LockPlate(context.Background(), "KA01"); !errors.Is(err, ErrNoLockScope) {
		t.Fatalf("expected ErrNoLockScope outside a lot lock, got %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs("lot-1:four-wheeler").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs("plate:KA01").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.WithLotLock(context.Background(), "lot-1", db.FourWheeler, func(ctx context.Context) error {
		return repo.LockPlate(ctx, "KA01")
	})
	if err != nil {
		t.Fatalf("WithLotLock: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestJobRepositoryRejectsUnknownColumn(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer sqlDB.Close()

	repo := NewJobRepository(sqlDB)
	if _, err := repo.ReservationIDsBefore(context.Background(), db.StatusActive, JobTimeColumn("id; DROP TABLE x"), time.Now()); err == nil {
		t.Fatal("expected error for unsupported column")
	}
}

func TestJobRepositoryUpdateStatuses(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer sqlDB.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE reservations SET status = $1, updated_at = NOW() WHERE id = ANY($2) AND status = $3`)).
		WithArgs("completed", sqlmock.AnyArg(), "active").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := NewJobRepository(sqlDB).UpdateReservationStatuses(context.Background(), []string{"a", "b"}, db.StatusActive, db.StatusCompleted)
	if err != nil {
		t.Fatalf("UpdateReservationStatuses: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}
}
