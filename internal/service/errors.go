package service

import (
	"errors"

	"parkspot/internal/entities"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUnavailable       = errors.New("capacity unavailable")
	ErrConflict          = errors.New("conflicting reservation")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidCredential = errors.New("invalid credentials")
)

// UnavailableError carries the availability decision that refused a booking.
type UnavailableError struct {
	Result entities.AvailabilityResult
}

func (e *UnavailableError) Error() string { return e.Result.Message }

func (e *UnavailableError) Unwrap() error { return ErrUnavailable }

// ConflictError carries the uniqueness check that refused a booking.
type ConflictError struct {
	Result entities.UniquenessResult
}

func (e *ConflictError) Error() string { return e.Result.Message }

func (e *ConflictError) Unwrap() error { return ErrConflict }
