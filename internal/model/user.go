package model

import (
	"context"
	"time"
)

// UserStore defines persistence operations for user credential records.
// All mutations go through explicit operations; callers never write
// fields back piecemeal.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	IncrementFailedLogins(ctx context.Context, id int64) (int, error)
	ResetFailedLogins(ctx context.Context, id int64) error
	LockAccount(ctx context.Context, id int64, until time.Time) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	UpdateEmail(ctx context.Context, id int64, email string) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// User represents a stored user identity.
type User struct {
	ID                  int64
	Email               string
	PasswordHash        string
	IsActive            bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Locked reports whether the durable lockout timestamp is still in the future.
func (u User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}
