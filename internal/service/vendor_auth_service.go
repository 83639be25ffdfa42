package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"parkspot/internal/auth"
	"parkspot/internal/repository"
)

type VendorAuthService struct {
	repo   repository.VendorStore
	tokens *auth.TokenIssuer
}

func NewVendorAuthService(repo repository.VendorStore, tokens *auth.TokenIssuer) *VendorAuthService {
	return &VendorAuthService{repo: repo, tokens: tokens}
}

// Login checks the password and returns a signed vendor token.
func (s *VendorAuthService) Login(ctx context.Context, email, password string) (string, error) {
	vendor, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidCredential
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(vendor.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredential
	}
	return s.tokens.Issue(vendor.ID, auth.RoleVendor)
}

func (s *VendorAuthService) Register(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", fmt.Errorf("%w: email and password cannot be empty", ErrInvalidRequest)
	}
	vendor, err := s.repo.CreateVendor(ctx, email, password)
	if err != nil {
		return "", err
	}
	return s.tokens.Issue(vendor.ID, auth.RoleVendor)
}
