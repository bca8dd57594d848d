package repository

import (
	"context"
	"errors"
	"time"

	"attire-api/internal/domain"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
)

// ProfilePatch lists the user fields that may change through a profile update.
type ProfilePatch struct {
	Name   string
	Email  string
	Phone  string
	Gender domain.Gender
}

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByResetToken returns the user holding tokenHash whose reset window is still open at now.
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (*domain.User, error)
	// UpdatePassword stores a new hash, stamps changedAt and clears any pending reset in one write.
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error
	// ConsumeResetToken behaves like UpdatePassword but only while tokenHash is still the
	// pending reset secret; a secret already used or replaced yields ErrNotFound.
	ConsumeResetToken(ctx context.Context, id, tokenHash, passwordHash string, changedAt time.Time) error
	// SetResetToken writes both reset fields together.
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	// ClearResetToken removes both reset fields together.
	ClearResetToken(ctx context.Context, id string) error
}
