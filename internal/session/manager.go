package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/deepresearch-app/server/internal/kv"
	"github.com/deepresearch-app/server/internal/logger"
)

const keyPrefix = "session:"

// idBytes is the entropy of a session identifier: 256 bits, hex-encoded
// to a 64-character string.
const idBytes = 32

// Manager owns the session lifecycle in the key-value store. A session's
// absence from the store is its expiry; there is no revocation list.
type Manager struct {
	kv     *kv.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewManager creates a session Manager with the configured lifetime.
func NewManager(client *kv.Client, ttl time.Duration, l *logger.Logger) *Manager {
	return &Manager{
		kv:     client,
		ttl:    ttl,
		logger: l,
	}
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create generates a new session for the user and stores it with the
// full lifetime.
func (m *Manager) Create(ctx context.Context, userID int64) (string, error) {
	buf := make([]byte, idBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	sessionID := hex.EncodeToString(buf)

	data, err := Encode(&Record{UserID: userID, CreatedAt: time.Now().UTC()})
	if err != nil {
		return "", fmt.Errorf("failed to encode session: %w", err)
	}

	if err := m.kv.SetWithExpiry(ctx, keyPrefix+sessionID, data, m.ttl); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	m.logger.Info("session created", "user_id", userID)
	return sessionID, nil
}

// Get retrieves the session record, or nil when the session is absent.
// A malformed stored payload is logged and treated as absent.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Record, error) {
	data, found, err := m.kv.Get(ctx, keyPrefix+sessionID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	rec, err := Decode(data)
	if err != nil {
		m.logger.Error("discarding malformed session payload", "error", err.Error())
		return nil, nil
	}

	return rec, nil
}

// Refresh extends the session TTL to the full lifetime without touching
// the stored data. Returns false when the session no longer exists,
// which is a normal outcome, not an error.
func (m *Manager) Refresh(ctx context.Context, sessionID string) (bool, error) {
	return m.kv.Expire(ctx, keyPrefix+sessionID, m.ttl)
}

// Delete removes the session. Deleting an absent session is not an error.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.kv.Delete(ctx, keyPrefix+sessionID)
}
