package csrf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepresearch-app/server/internal/logger"
)

func newTestService(secret string) *Service {
	return NewService(secret, logger.New(8))
}

func TestGenerateVerifyRoundTrip(t *testing.T) {
	s := newTestService("test-secret")

	token, err := s.Generate("session-a")
	require.NoError(t, err)

	nonce, signature, ok := strings.Cut(token, ".")
	require.True(t, ok)
	assert.Len(t, nonce, 32)
	assert.Len(t, signature, 64)

	assert.True(t, s.Verify(token, "session-a"))
}

func TestTokenBoundToSession(t *testing.T) {
	s := newTestService("test-secret")

	token, err := s.Generate("session-a")
	require.NoError(t, err)

	assert.False(t, s.Verify(token, "session-b"))
	assert.False(t, s.Verify(token, ""))
}

func TestTokenBoundToSecret(t *testing.T) {
	token, err := newTestService("secret-one").Generate("session-a")
	require.NoError(t, err)

	assert.False(t, newTestService("secret-two").Verify(token, "session-a"))
}

func TestMalformedTokensRejected(t *testing.T) {
	s := newTestService("test-secret")

	for _, token := range []string{
		"",
		"no-separator",
		".signature-only",
		"nonce-only.",
		".",
	} {
		assert.False(t, s.Verify(token, "session-a"), "token %q", token)
	}
}

func TestTokensAreUnique(t *testing.T) {
	s := newTestService("test-secret")

	first, err := s.Generate("session-a")
	require.NoError(t, err)
	second, err := s.Generate("session-a")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, s.Verify(first, "session-a"))
	assert.True(t, s.Verify(second, "session-a"))
}
