package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type VendorRepository struct {
	db *sql.DB
}

func NewVendorRepository(db *sql.DB) *VendorRepository {
	return &VendorRepository{db: db}
}

func (r *VendorRepository) GetByEmail(ctx context.Context, email string) (*Vendor, error) {
	var v Vendor
	err := r.db.QueryRowContext(ctx, "SELECT id, email, password_hash FROM vendors WHERE email = $1", normalizeEmail(email)).
		Scan(&v.ID, &v.Email, &v.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("vendor %s: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("error querying vendor: %w", err)
	}
	return &v, nil
}

func (r *VendorRepository) CreateVendor(ctx context.Context, email, password string) (*Vendor, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}
	v := &Vendor{ID: uuid.NewString(), Email: normalizeEmail(email), PasswordHash: string(hashed)}
	_, err = r.db.ExecContext(ctx, "INSERT INTO vendors (id, email, password_hash) VALUES ($1, $2, $3)", v.ID, v.Email, v.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("vendor %s: %w", v.Email, ErrDuplicate)
		}
		return nil, fmt.Errorf("error inserting vendor: %w", err)
	}
	return v, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
