package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepresearch-app/server/internal/logger"
)

func testConfig() Config {
	// Fast parameters for tests; production defaults live in config.
	return Config{
		Time:        1,
		MemoryKiB:   8 * 1024,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestHasher(t *testing.T, cfg Config) *Hasher {
	t.Helper()
	h, err := NewHasher(cfg, logger.New(8))
	require.NoError(t, err)
	return h
}

func TestHashVerifyRoundTrip(t *testing.T) {
	h := newTestHasher(t, testConfig())

	encoded, err := h.Hash("correct-horse-battery")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$"))

	assert.True(t, h.Verify("correct-horse-battery", encoded))
	assert.False(t, h.Verify("correct-horse-staple", encoded))
	assert.False(t, h.Verify("", encoded))
}

func TestHashesAreSalted(t *testing.T) {
	h := newTestHasher(t, testConfig())

	first, err := h.Hash("password1")
	require.NoError(t, err)
	second, err := h.Hash("password1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, h.Verify("password1", first))
	assert.True(t, h.Verify("password1", second))
}

func TestVerifyReadsParametersFromHash(t *testing.T) {
	weak := newTestHasher(t, testConfig())

	encoded, err := weak.Hash("password1")
	require.NoError(t, err)

	strongCfg := testConfig()
	strongCfg.Time = 2
	strongCfg.MemoryKiB = 16 * 1024
	strong := newTestHasher(t, strongCfg)

	// Raising configured parameters must not invalidate old hashes.
	assert.True(t, strong.Verify("password1", encoded))
	assert.False(t, strong.Verify("password2", encoded))
}

func TestVerifyMalformedHashReturnsFalse(t *testing.T) {
	h := newTestHasher(t, testConfig())

	for _, encoded := range []string{
		"",
		"not-a-hash",
		"$argon2id$v=19$m=8192,t=1,p=1$short",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$ZGlnZXN0",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$ZGlnZXN0",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$ZGlnZXN0",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$ZGlnZXN0",
	} {
		assert.False(t, h.Verify("password1", encoded), "hash %q", encoded)
	}
}

func TestNeedsRehash(t *testing.T) {
	weak := newTestHasher(t, testConfig())
	encoded, err := weak.Hash("password1")
	require.NoError(t, err)

	assert.False(t, weak.NeedsRehash(encoded))

	strongCfg := testConfig()
	strongCfg.MemoryKiB = 19456
	strong := newTestHasher(t, strongCfg)
	assert.True(t, strong.NeedsRehash(encoded))

	assert.False(t, strong.NeedsRehash("garbage"))
}

func TestNewHasherRejectsWeakConfig(t *testing.T) {
	for name, cfg := range map[string]Config{
		"zero time":    {Time: 0, MemoryKiB: 8192, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		"small memory": {Time: 1, MemoryKiB: 1024, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		"short key":    {Time: 1, MemoryKiB: 8192, Parallelism: 1, SaltLength: 16, KeyLength: 8},
	} {
		_, err := NewHasher(cfg, logger.New(8))
		assert.Error(t, err, name)
	}
}
