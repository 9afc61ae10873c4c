package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deepresearch-app/server/internal/csrf"
	"github.com/deepresearch-app/server/internal/logger"
	"github.com/deepresearch-app/server/internal/model"
	"github.com/deepresearch-app/server/internal/password"
	"github.com/deepresearch-app/server/internal/ratelimit"
	"github.com/deepresearch-app/server/internal/session"
)

const minPasswordLength = 8

// LoginResult carries the outcome of a successful login.
type LoginResult struct {
	User      model.User
	SessionID string
	CSRFToken string
}

// Auth implements the register, login, logout and current-user flows on
// top of the credential store, session manager, rate limiter, password
// hasher and CSRF token service.
type Auth struct {
	users    model.UserStore
	sessions *session.Manager
	limiter  *ratelimit.Limiter
	hasher   *password.Hasher
	csrf     *csrf.Service
	logger   *logger.Logger
}

// NewAuth wires the auth service from its collaborators.
func NewAuth(
	users model.UserStore,
	sessions *session.Manager,
	limiter *ratelimit.Limiter,
	hasher *password.Hasher,
	csrfService *csrf.Service,
	l *logger.Logger,
) *Auth {
	return &Auth{
		users:    users,
		sessions: sessions,
		limiter:  limiter,
		hasher:   hasher,
		csrf:     csrfService,
		logger:   l,
	}
}

// Register creates a new user account.
func (a *Auth) Register(ctx context.Context, email, pass string) (model.User, error) {
	a.logger.Debug("Auth service: registering user", "email", email)

	if len(pass) < minPasswordLength {
		return model.User{}, model.ErrWeakPassword
	}

	_, err := a.users.GetByEmail(ctx, email)
	if err == nil {
		a.logger.Info("Auth service: email already registered", "email", email)
		return model.User{}, model.ErrEmailTaken
	}
	if !errors.Is(err, model.ErrNotFound) {
		a.logger.Error("Auth service: failed to get user by email",
			"email", email,
			"error", err.Error())
		return model.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	hash, err := a.hasher.Hash(pass)
	if err != nil {
		a.logger.Error("Auth service: failed to hash password", "error", err.Error())
		return model.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := a.users.Create(ctx, email, hash)
	if err != nil {
		if errors.Is(err, model.ErrEmailTaken) {
			return model.User{}, err
		}
		a.logger.Error("Auth service: failed to create user",
			"email", email,
			"error", err.Error())
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	a.logger.Info("Auth service: user registered", "email", user.Email, "user_id", user.ID)
	return user, nil
}

// Login authenticates a user and issues a session plus a bound CSRF token.
//
// The check order is fixed: IP window, email window, user lookup, cached
// lockout flag, durable lockout timestamp, active flag, password
// verification. Unknown email and wrong password surface identically to
// prevent enumeration.
func (a *Auth) Login(ctx context.Context, email, pass, clientIP string) (LoginResult, error) {
	a.logger.Debug("Auth service: login attempt", "email", email, "ip", clientIP)

	limited, err := a.limiter.CheckIP(ctx, clientIP)
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to check ip rate limit: %w", err)
	}
	if limited {
		return LoginResult{}, model.ErrRateLimited
	}

	limited, err = a.limiter.CheckEmail(ctx, email)
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to check email rate limit: %w", err)
	}
	if limited {
		return LoginResult{}, model.ErrRateLimited
	}

	user, err := a.users.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		// Counts against the windows above but not against the
		// per-account failure counter.
		a.logger.Warn("Auth service: login attempt for unknown email", "email", email)
		return LoginResult{}, model.ErrInvalidCredentials
	}
	if err != nil {
		a.logger.Error("Auth service: failed to get user by email",
			"email", email,
			"error", err.Error())
		return LoginResult{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	locked, err := a.lockedOut(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}
	if locked {
		return LoginResult{}, model.ErrAccountLocked
	}

	if !user.IsActive {
		return LoginResult{}, model.ErrAccountInactive
	}

	if !a.hasher.Verify(pass, user.PasswordHash) {
		return LoginResult{}, a.recordFailure(ctx, user)
	}

	if a.hasher.NeedsRehash(user.PasswordHash) {
		a.logger.Info("Auth service: stored hash weaker than configured parameters",
			"user_id", user.ID)
	}

	if err := a.limiter.ResetFailures(ctx, user.Email); err != nil {
		return LoginResult{}, fmt.Errorf("failed to reset failure counter: %w", err)
	}
	if err := a.users.ResetFailedLogins(ctx, user.ID); err != nil {
		a.logger.Error("Auth service: failed to reset durable failure counter",
			"user_id", user.ID,
			"error", err.Error())
		return LoginResult{}, fmt.Errorf("failed to reset failed logins: %w", err)
	}

	sessionID, err := a.sessions.Create(ctx, user.ID)
	if err != nil {
		a.logger.Error("Auth service: failed to create session",
			"user_id", user.ID,
			"error", err.Error())
		return LoginResult{}, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := a.csrf.Generate(sessionID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to generate csrf token: %w", err)
	}

	a.logger.Info("Auth service: user logged in", "email", user.Email, "user_id", user.ID)
	return LoginResult{User: user, SessionID: sessionID, CSRFToken: token}, nil
}

// lockedOut consults the cached lockout flag first, then the durable
// locked_until timestamp. The durable column is authoritative; when it
// is active but the cache is cold, the flag is re-derived instead of
// trusting the miss as "unlocked".
func (a *Auth) lockedOut(ctx context.Context, user model.User) (bool, error) {
	flagged, err := a.limiter.IsAccountLocked(ctx, user.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check lockout flag: %w", err)
	}
	if flagged {
		return true, nil
	}

	if user.Locked(time.Now()) {
		if err := a.limiter.LockAccount(ctx, user.ID, *user.LockedUntil); err != nil {
			a.logger.Error("Auth service: failed to re-cache lockout flag",
				"user_id", user.ID,
				"error", err.Error())
		}
		return true, nil
	}

	return false, nil
}

// recordFailure books a wrong-password attempt and performs the dual
// lockout write once the threshold is reached. The error it returns is
// the caller's response: lockout at the threshold, invalid credentials
// otherwise.
func (a *Auth) recordFailure(ctx context.Context, user model.User) error {
	attempts, err := a.limiter.RecordFailure(ctx, user.Email)
	if err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}

	if _, err := a.users.IncrementFailedLogins(ctx, user.ID); err != nil {
		a.logger.Error("Auth service: failed to increment durable failure counter",
			"user_id", user.ID,
			"error", err.Error())
	}

	if attempts >= int64(a.limiter.LockoutThreshold()) {
		until := time.Now().Add(a.limiter.LockoutDuration())

		// Durable write first: locked_until stays the source of truth
		// even if the flag write below fails.
		if err := a.users.LockAccount(ctx, user.ID, until); err != nil {
			a.logger.Error("Auth service: failed to lock account",
				"user_id", user.ID,
				"error", err.Error())
			return fmt.Errorf("failed to lock account: %w", err)
		}
		if err := a.limiter.LockAccount(ctx, user.ID, until); err != nil {
			a.logger.Error("Auth service: failed to write lockout flag",
				"user_id", user.ID,
				"error", err.Error())
		}

		return model.ErrAccountLocked
	}

	a.logger.Warn("Auth service: failed login attempt",
		"email", user.Email,
		"attempt", attempts)
	return model.ErrInvalidCredentials
}

// Logout destroys the session. Always succeeds from the caller's
// perspective; a failed delete is logged and the cookies are cleared
// regardless.
func (a *Auth) Logout(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}

	if err := a.sessions.Delete(ctx, sessionID); err != nil {
		a.logger.Error("Auth service: failed to delete session", "error", err.Error())
		return
	}

	a.logger.Info("Auth service: session deleted")
}

// CurrentUser resolves a session cookie to its active user, extending
// the session TTL on the way (sliding expiry).
func (a *Auth) CurrentUser(ctx context.Context, sessionID string) (model.User, error) {
	if sessionID == "" {
		return model.User{}, model.ErrNotAuthenticated
	}

	rec, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get session: %w", err)
	}
	if rec == nil {
		return model.User{}, model.ErrNotAuthenticated
	}

	if _, err := a.sessions.Refresh(ctx, sessionID); err != nil {
		a.logger.Error("Auth service: failed to refresh session", "error", err.Error())
	}

	user, err := a.users.GetByID(ctx, rec.UserID)
	if errors.Is(err, model.ErrNotFound) {
		return model.User{}, model.ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}

	if !user.IsActive {
		return model.User{}, model.ErrAccountInactive
	}

	return user, nil
}

// UnlockAccount explicitly clears the lockout state and failure counters
// for a user, in both the credential store and the key-value store.
func (a *Auth) UnlockAccount(ctx context.Context, userID int64) error {
	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user by id: %w", err)
	}

	if err := a.users.ResetFailedLogins(ctx, userID); err != nil {
		return fmt.Errorf("failed to reset failed logins: %w", err)
	}
	if err := a.limiter.UnlockAccount(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear lockout flag: %w", err)
	}
	if err := a.limiter.ResetFailures(ctx, user.Email); err != nil {
		return fmt.Errorf("failed to reset failure counter: %w", err)
	}

	a.logger.Info("Auth service: account unlocked", "user_id", userID)
	return nil
}
