package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"parkspot/internal/db"
)

type JobRepository struct {
	DB *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{DB: db}
}

// ReservationIDsBefore returns ids of reservations in status whose column
// timestamp is earlier than before.
func (r *JobRepository) ReservationIDsBefore(ctx context.Context, status db.ReservationStatus, column JobTimeColumn, before time.Time) ([]string, error) {
	switch column {
	case JobStartTime, JobEndTime, JobCreatedAt:
	default:
		return nil, fmt.Errorf("unsupported job column %q", column)
	}
	query := `SELECT id FROM reservations WHERE status = $1 AND ` + string(column) + ` < $2`
	rows, err := r.DB.QueryContext(ctx, query, string(status), before)
	if err != nil {
		return nil, fmt.Errorf("error querying %s reservations past %s: %w", status, column, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning reservation ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating rows: %w", err)
	}
	return ids, nil
}

// UpdateReservationStatuses moves the listed reservations still in status from
// to status to. Rows that changed status in the meantime are left alone.
func (r *JobRepository) UpdateReservationStatuses(ctx context.Context, ids []string, from, to db.ReservationStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `UPDATE reservations SET status = $1, updated_at = NOW() WHERE id = ANY($2) AND status = $3`
	result, err := r.DB.ExecContext(ctx, query, string(to), pq.Array(ids), string(from))
	if err != nil {
		return 0, fmt.Errorf("error updating reservation statuses: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading rows affected: %w", err)
	}
	return n, nil
}
