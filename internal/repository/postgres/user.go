package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/deepresearch-app/server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

const uniqueViolation = "23505"

// UserRepository persists user credential records.
type UserRepository struct {
	db *Connection
}

// NewUserRepository creates a UserRepository on the given connection.
func NewUserRepository(db *Connection) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

const userColumns = `id, email, password_hash, is_active, failed_login_attempts, locked_until, created_at, updated_at`

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.IsActive,
		&user.FailedLoginAttempts, &user.LockedUntil, &user.CreatedAt, &user.UpdatedAt,
	)
	return user, err
}

// Create inserts a new user with a lowercased email. A duplicate email
// (case-insensitive) yields model.ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, email, passwordHash string) (model.User, error) {
	query := `INSERT INTO users (email, password_hash)
			  VALUES (LOWER($1), $2)
			  RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, email, passwordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.User{}, model.ErrEmailTaken
		}
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// GetByEmail looks a user up case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	query := `SELECT ` + userColumns + `
			  FROM users WHERE LOWER(email) = LOWER($1)`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// GetByID returns the user with the given id.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (model.User, error) {
	query := `SELECT ` + userColumns + `
			  FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}

	return user, nil
}

// IncrementFailedLogins bumps the durable failure counter and returns
// the new value.
func (r *UserRepository) IncrementFailedLogins(ctx context.Context, id int64) (int, error) {
	query := `UPDATE users
			  SET failed_login_attempts = failed_login_attempts + 1, updated_at = CURRENT_TIMESTAMP
			  WHERE id = $1
			  RETURNING failed_login_attempts`

	var attempts int
	if err := r.db.QueryRow(ctx, query, id).Scan(&attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.ErrNotFound
		}
		return 0, fmt.Errorf("failed to increment failed logins: %w", err)
	}

	return attempts, nil
}

// ResetFailedLogins zeroes the failure counter and clears the lockout
// timestamp. Called exactly on successful login or explicit unlock.
func (r *UserRepository) ResetFailedLogins(ctx context.Context, id int64) error {
	query := `UPDATE users
			  SET failed_login_attempts = 0, locked_until = NULL, updated_at = CURRENT_TIMESTAMP
			  WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to reset failed logins: %w", err)
	}

	return nil
}

// LockAccount sets the durable lockout timestamp.
func (r *UserRepository) LockAccount(ctx context.Context, id int64, until time.Time) error {
	query := `UPDATE users
			  SET locked_until = $2, updated_at = CURRENT_TIMESTAMP
			  WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, id, until); err != nil {
		return fmt.Errorf("failed to lock account: %w", err)
	}

	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	query := `UPDATE users
			  SET password_hash = $2, updated_at = CURRENT_TIMESTAMP
			  WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, id, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

// UpdateEmail replaces the email, stored lowercased.
func (r *UserRepository) UpdateEmail(ctx context.Context, id int64, email string) error {
	query := `UPDATE users
			  SET email = LOWER($2), updated_at = CURRENT_TIMESTAMP
			  WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, id, email); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.ErrEmailTaken
		}
		return fmt.Errorf("failed to update email: %w", err)
	}

	return nil
}

// SetActive toggles the account active flag.
func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE users
			  SET is_active = $2, updated_at = CURRENT_TIMESTAMP
			  WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, id, active); err != nil {
		return fmt.Errorf("failed to set active flag: %w", err)
	}

	return nil
}
