package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/deepresearch-app/server/internal/kv"
	"github.com/deepresearch-app/server/internal/logger"
)

// Config holds sliding-window limits and lockout parameters.
type Config struct {
	IPLimit          int
	IPWindow         time.Duration
	EmailLimit       int
	EmailWindow      time.Duration
	FailureWindow    time.Duration
	LockoutThreshold int
	LockoutDuration  time.Duration
}

// DefaultConfig matches the documented thresholds: 5 attempts per IP per
// minute, 10 per email per 5 minutes, lockout at 10 failures in an hour,
// 15 minute lockout.
func DefaultConfig() Config {
	return Config{
		IPLimit:          5,
		IPWindow:         time.Minute,
		EmailLimit:       10,
		EmailWindow:      5 * time.Minute,
		FailureWindow:    time.Hour,
		LockoutThreshold: 10,
		LockoutDuration:  15 * time.Minute,
	}
}

// Limiter tracks login attempt windows, wrong-password failure counts and
// the account lockout flag in the key-value store. Counters only ever
// grow within their window; they reset by TTL expiry or explicit delete.
type Limiter struct {
	kv     *kv.Client
	config Config
	logger *logger.Logger
}

// NewLimiter creates a Limiter on top of the key-value client.
func NewLimiter(client *kv.Client, cfg Config, l *logger.Logger) *Limiter {
	return &Limiter{
		kv:     client,
		config: cfg,
		logger: l,
	}
}

func ipKey(ip string) string {
	return "ratelimit:ip:" + ip + ":1m"
}

func emailKey(email string) string {
	return "ratelimit:email:" + email + ":5m"
}

func failureKey(email string) string {
	return "failed_attempts:" + email
}

func lockKey(userID int64) string {
	return "account_locked:" + strconv.FormatInt(userID, 10)
}

// CheckIP counts a login attempt from ip and reports whether the
// one-minute window budget is exhausted.
func (l *Limiter) CheckIP(ctx context.Context, ip string) (bool, error) {
	count, err := l.bump(ctx, ipKey(ip), l.config.IPWindow)
	if err != nil {
		return false, err
	}

	if count > int64(l.config.IPLimit) {
		l.logger.Warn("ip rate limit exceeded", "ip", ip)
		return true, nil
	}
	return false, nil
}

// CheckEmail counts a login attempt for email and reports whether the
// five-minute window budget is exhausted.
func (l *Limiter) CheckEmail(ctx context.Context, email string) (bool, error) {
	count, err := l.bump(ctx, emailKey(email), l.config.EmailWindow)
	if err != nil {
		return false, err
	}

	if count > int64(l.config.EmailLimit) {
		l.logger.Warn("email rate limit exceeded", "email", email)
		return true, nil
	}
	return false, nil
}

// RecordFailure increments the wrong-password counter for email and
// returns the new count. Only actual password mismatches count here;
// rate-limit rejections and unknown emails do not.
func (l *Limiter) RecordFailure(ctx context.Context, email string) (int64, error) {
	return l.bump(ctx, failureKey(email), l.config.FailureWindow)
}

// ResetFailures clears the wrong-password counter after a successful login.
func (l *Limiter) ResetFailures(ctx context.Context, email string) error {
	return l.kv.Delete(ctx, failureKey(email))
}

// LockoutThreshold returns the configured failure count that triggers lockout.
func (l *Limiter) LockoutThreshold() int {
	return l.config.LockoutThreshold
}

// LockoutDuration returns the configured lockout length.
func (l *Limiter) LockoutDuration() time.Duration {
	return l.config.LockoutDuration
}

// LockAccount writes the lockout flag for the user, expiring at until.
// The durable locked_until column stays authoritative; this flag is the
// fast path and is re-derived from it on a cache miss.
func (l *Limiter) LockAccount(ctx context.Context, userID int64, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}

	if err := l.kv.SetWithExpiry(ctx, lockKey(userID), until.UTC().Format(time.RFC3339), ttl); err != nil {
		return fmt.Errorf("failed to write lockout flag: %w", err)
	}

	l.logger.Info("account locked", "user_id", userID, "until", until.UTC())
	return nil
}

// IsAccountLocked checks the lockout flag.
func (l *Limiter) IsAccountLocked(ctx context.Context, userID int64) (bool, error) {
	_, found, err := l.kv.Get(ctx, lockKey(userID))
	if err != nil {
		return false, err
	}
	return found, nil
}

// UnlockAccount removes the lockout flag.
func (l *Limiter) UnlockAccount(ctx context.Context, userID int64) error {
	if err := l.kv.Delete(ctx, lockKey(userID)); err != nil {
		return err
	}

	l.logger.Info("account unlocked", "user_id", userID)
	return nil
}

// bump increments a windowed counter, attaching the expiry only on the
// increment that creates the key so the window is never silently extended.
func (l *Limiter) bump(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := l.kv.Incr(ctx, key)
	if err != nil {
		return 0, err
	}

	if count == 1 {
		if _, err := l.kv.Expire(ctx, key, window); err != nil {
			return 0, err
		}
	}

	return count, nil
}
