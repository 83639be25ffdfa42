package repository

import (
	"context"
	"database/sql"
	"fmt"

	"parkspot/internal/logging"
)

// Migration is one append-only schema step. Versions increase monotonically
// and are recorded in schema_migrations once applied.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

var migrations = []Migration{
	{Version: 1, Name: "create_vendors", SQL: `
CREATE TABLE vendors (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`},
	{Version: 2, Name: "create_parking_lots", SQL: `
CREATE TABLE parking_lots (
	id TEXT PRIMARY KEY,
	vendor_id TEXT NOT NULL REFERENCES vendors(id),
	name TEXT NOT NULL,
	address TEXT NOT NULL DEFAULT '',
	timezone TEXT NOT NULL DEFAULT 'UTC',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	capacity JSONB NOT NULL DEFAULT '{}',
	hourly_rates JSONB NOT NULL DEFAULT '{}',
	operating_hours JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`},
	{Version: 3, Name: "create_reservations", SQL: `
CREATE TABLE reservations (
	id TEXT PRIMARY KEY,
	parking_lot_id TEXT NOT NULL REFERENCES parking_lots(id),
	user_id TEXT NOT NULL,
	vehicle_type TEXT NOT NULL,
	number_plate TEXT NOT NULL,
	start_time TIMESTAMPTZ NOT NULL,
	end_time TIMESTAMPTZ NOT NULL,
	duration_hours INTEGER NOT NULL,
	status TEXT NOT NULL,
	vehicle_time_hash TEXT NOT NULL,
	full_name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	amount_cents BIGINT NOT NULL DEFAULT 0,
	currency TEXT NOT NULL DEFAULT 'inr',
	payment_intent_id TEXT NOT NULL DEFAULT '',
	payment_status TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CHECK (end_time > start_time)
)`},
	{Version: 4, Name: "reservation_indexes", SQL: `
CREATE UNIQUE INDEX reservations_active_hash_key ON reservations (vehicle_time_hash)
	WHERE status IN ('pending', 'confirmed', 'active');
CREATE INDEX reservations_lot_window_idx ON reservations (parking_lot_id, vehicle_type, start_time, end_time)
	WHERE status IN ('pending', 'confirmed', 'active');
CREATE INDEX reservations_plate_idx ON reservations (number_plate, start_time);
CREATE INDEX reservations_user_idx ON reservations (user_id, start_time);
CREATE INDEX reservations_payment_intent_idx ON reservations (payment_intent_id) WHERE payment_intent_id <> ''`},
}

// Migrate applies every migration not yet recorded in schema_migrations, each
// in its own transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return err
		}
		logging.Info().Int("version", m.Version).Str("name", m.Name).Msg("migration applied")
	}
	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func applyMigration(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d: %w", m.Version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
		return fmt.Errorf("migration %d: recording version: %w", m.Version, err)
	}
	return tx.Commit()
}
