package model

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrWeakPassword indicates the password fails the minimum length policy.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	// ErrInvalidCredentials covers both unknown email and wrong password,
	// so the response never reveals which factor failed.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountLocked indicates the account is temporarily locked after
	// repeated credential failures.
	ErrAccountLocked = errors.New("account locked due to too many failed attempts")
	// ErrAccountInactive indicates the account has been deactivated.
	ErrAccountInactive = errors.New("user account is inactive")
	// ErrRateLimited indicates a sliding-window limit was exceeded.
	ErrRateLimited = errors.New("too many login attempts")
	// ErrNotAuthenticated indicates a missing, expired or invalid session.
	ErrNotAuthenticated = errors.New("not authenticated")
)
