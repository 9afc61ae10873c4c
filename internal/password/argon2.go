package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/deepresearch-app/server/internal/logger"
)

const algorithmID = "argon2id"

// Config holds argon2id cost parameters, fixed at process configuration.
// Changing them never invalidates stored hashes: verification reads the
// parameters back from the hash itself.
type Config struct {
	Time        uint32
	MemoryKiB   uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher hashes and verifies passwords with argon2id in PHC string format.
type Hasher struct {
	config Config
	logger *logger.Logger
}

// NewHasher creates a Hasher with the given cost parameters.
func NewHasher(cfg Config, l *logger.Logger) (*Hasher, error) {
	if cfg.Time < 1 || cfg.Parallelism < 1 {
		return nil, errors.New("argon2 time and parallelism must be >= 1")
	}
	if cfg.MemoryKiB < 8*1024 {
		return nil, errors.New("argon2 memory must be >= 8192 KiB")
	}
	if cfg.SaltLength < 8 || cfg.KeyLength < 16 {
		return nil, errors.New("argon2 salt/key lengths too small")
	}

	return &Hasher{config: cfg, logger: l}, nil
}

// Hash derives an argon2id digest from the password and encodes it as
// $argon2id$v=19$m=...,t=...,p=...$salt$digest.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	digest := argon2.IDKey(
		[]byte(password),
		salt,
		h.config.Time,
		h.config.MemoryKiB,
		h.config.Parallelism,
		h.config.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.config.MemoryKiB,
		h.config.Time,
		h.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	), nil
}

// Verify reports whether password matches the stored hash. A mismatch is
// a normal false result. A structurally invalid stored hash is logged and
// reported as false rather than surfaced as an error.
func (h *Hasher) Verify(password, encodedHash string) bool {
	parsed, err := parse(encodedHash)
	if err != nil {
		h.logger.Error("invalid stored password hash", "error", err.Error())
		return false
	}

	computed := argon2.IDKey(
		[]byte(password),
		parsed.salt,
		parsed.time,
		parsed.memoryKiB,
		parsed.parallelism,
		uint32(len(parsed.digest)),
	)

	return subtle.ConstantTimeCompare(computed, parsed.digest) == 1
}

// NeedsRehash reports whether the stored hash was produced with weaker
// parameters than currently configured. Used to drive lazy migration on
// the next successful login. Unparseable hashes report false; Verify
// already rejects them.
func (h *Hasher) NeedsRehash(encodedHash string) bool {
	parsed, err := parse(encodedHash)
	if err != nil {
		h.logger.Error("rehash check on invalid hash", "error", err.Error())
		return false
	}

	return parsed.memoryKiB < h.config.MemoryKiB ||
		parsed.time < h.config.Time ||
		parsed.parallelism < h.config.Parallelism ||
		uint32(len(parsed.digest)) != h.config.KeyLength
}

type parsedHash struct {
	memoryKiB   uint32
	time        uint32
	parallelism uint8
	salt        []byte
	digest      []byte
}

func parse(encodedHash string) (*parsedHash, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("malformed PHC string")
	}
	if parts[1] != algorithmID {
		return nil, fmt.Errorf("unsupported algorithm %q", parts[1])
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, errors.New("malformed version field")
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	p := &parsedHash{}
	for _, pair := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, errors.New("malformed parameter field")
		}

		switch kv[0] {
		case "m":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil {
				return nil, errors.New("malformed memory parameter")
			}
			p.memoryKiB = uint32(v)
		case "t":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil {
				return nil, errors.New("malformed time parameter")
			}
			p.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil {
				return nil, errors.New("malformed parallelism parameter")
			}
			p.parallelism = uint8(v)
		default:
			return nil, fmt.Errorf("unknown parameter %q", kv[0])
		}
	}
	if p.memoryKiB == 0 || p.time == 0 || p.parallelism == 0 {
		return nil, errors.New("missing cost parameters")
	}

	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, errors.New("malformed salt encoding")
	}
	if p.digest, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, errors.New("malformed digest encoding")
	}
	if len(p.salt) == 0 || len(p.digest) == 0 {
		return nil, errors.New("empty salt or digest")
	}

	return p, nil
}
