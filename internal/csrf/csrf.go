package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/deepresearch-app/server/internal/logger"
)

const nonceBytes = 16

// Service issues and checks stateless double-submit CSRF tokens bound to
// a session identifier. Tokens are nonce.signature where the signature is
// an HMAC-SHA256 over "sessionID:nonce" with the server secret; nothing
// is stored, validity is recomputed at verification time.
type Service struct {
	secret []byte
	logger *logger.Logger
}

// NewService creates a token service with the signing secret.
func NewService(secret string, l *logger.Logger) *Service {
	return &Service{
		secret: []byte(secret),
		logger: l,
	}
}

// Generate mints a token bound to sessionID.
func (s *Service) Generate(sessionID string) (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate csrf nonce: %w", err)
	}
	nonce := hex.EncodeToString(buf)

	return nonce + "." + s.sign(sessionID, nonce), nil
}

// Verify reports whether token was minted for sessionID with this
// service's secret. The comparison is constant-time; a malformed token
// is logged as a warning and reported false, never raised as an error.
func (s *Service) Verify(token, sessionID string) bool {
	nonce, signature, ok := strings.Cut(token, ".")
	if !ok || nonce == "" || signature == "" {
		s.logger.Warn("malformed csrf token")
		return false
	}

	expected := s.sign(sessionID, nonce)
	return hmac.Equal([]byte(signature), []byte(expected))
}

func (s *Service) sign(sessionID, nonce string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(sessionID + ":" + nonce))
	return hex.EncodeToString(mac.Sum(nil))
}
