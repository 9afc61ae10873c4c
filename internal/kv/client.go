package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/deepresearch-app/server/internal/logger"
)

// ErrUnavailable indicates the key-value store could not be reached after
// the configured retries. Distinct from a cache miss and from application
// errors; handlers translate it into a generic server error.
var ErrUnavailable = errors.New("key-value store unavailable")

// RetryConfig parameterizes the bounded exponential backoff applied to
// every store operation.
type RetryConfig struct {
	MaxRetries   uint64
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig mirrors the documented policy: 3 retries, 0.5s
// initial delay, doubling, capped at 10s per attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
	}
}

// Client is a thin retrying client over the remote key-value store.
// It holds no request-scoped state and is safe for concurrent use.
type Client struct {
	redis  redis.UniversalClient
	policy RetryConfig
	logger *logger.Logger
}

// New creates a Client around an existing connection handle.
func New(redisClient redis.UniversalClient, policy RetryConfig, l *logger.Logger) *Client {
	if policy.InitialDelay <= 0 {
		policy = DefaultRetryConfig()
	}

	return &Client{
		redis:  redisClient,
		policy: policy,
		logger: l,
	}
}

// Connect verifies the store is reachable, retrying transient failures
// with the shared backoff policy. Exhausting retries yields ErrUnavailable.
func (c *Client) Connect(ctx context.Context) error {
	return c.withRetry(ctx, "connect", func(ctx context.Context) error {
		return c.redis.Ping(ctx).Err()
	})
}

// Get returns the value for key and whether it exists.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)

	err := c.withRetry(ctx, "get", func(ctx context.Context) error {
		v, err := c.redis.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		value, found = v, true
		return nil
	})
	if err != nil {
		return "", false, err
	}

	return value, found, nil
}

// SetWithExpiry stores value under key with the given TTL.
func (c *Client) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.withRetry(ctx, "set", func(ctx context.Context) error {
		return c.redis.Set(ctx, key, value, ttl).Err()
	})
}

// Delete removes keys. Deleting absent keys is not an error.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	return c.withRetry(ctx, "delete", func(ctx context.Context) error {
		return c.redis.Del(ctx, keys...).Err()
	})
}

// Expire refreshes the TTL of key. Returns false when the key no longer
// exists, which callers treat as a normal outcome.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	var ok bool
	err := c.withRetry(ctx, "expire", func(ctx context.Context) error {
		v, err := c.redis.Expire(ctx, key, ttl).Result()
		if err != nil {
			return err
		}
		ok = v
		return nil
	})
	if err != nil {
		return false, err
	}

	return ok, nil
}

// Incr atomically increments the counter at key, creating it at 1.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	var count int64
	err := c.withRetry(ctx, "incr", func(ctx context.Context) error {
		v, err := c.redis.Incr(ctx, key).Result()
		if err != nil {
			return err
		}
		count = v
		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Ping performs a single availability check without retries, for health
// reporting.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	return nil
}

// withRetry runs op under the bounded backoff policy: MaxRetries
// attempts beyond the first, delay doubling from InitialDelay, capped
// at MaxDelay. Backoff honours ctx cancellation between attempts.
func (c *Client) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retry.WithCappedDuration(c.policy.MaxDelay, retry.NewExponential(c.policy.InitialDelay))
	backoff = retry.WithMaxRetries(c.policy.MaxRetries, backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			c.logger.Debug("key-value operation failed, will retry",
				"op", op,
				"error", err.Error())
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		c.logger.Error("key-value operation failed after retries",
			"op", op,
			"error", err.Error())
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}

	return nil
}
