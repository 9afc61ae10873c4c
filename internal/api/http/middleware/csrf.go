package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/deepresearch-app/server/internal/logger"
)

// CSRFVerifier checks a double-submit token against a session identifier.
type CSRFVerifier interface {
	Verify(token, sessionID string) bool
}

// CSRFHeader carries the double-submit token on state-changing requests.
const CSRFHeader = "X-CSRF-Token"

var mutatingMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// CSRF enforces double-submit token validation on state-changing verbs.
//
// Validation only applies when a session cookie is present: the token is
// minted at login, so login and register themselves (and any cookie-free
// request, like health checks) cannot carry one. exempt lists paths that
// skip the check even with a cookie present.
func CSRF(verifier CSRFVerifier, sessionCookie string, exempt []string, l *logger.Logger) func(http.Handler) http.Handler {
	exemptPaths := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		exemptPaths[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !mutatingMethods[r.Method] || exemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(sessionCookie)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get(CSRFHeader)
			if token == "" || !verifier.Verify(token, cookie.Value) {
				l.Warn("csrf validation failed",
					"path", r.URL.Path,
					"method", r.Method)
				writeJSONError(w, http.StatusForbidden, "CSRF token missing or invalid")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
