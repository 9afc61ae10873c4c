package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/deepresearch-app/server/internal/logger"
	"github.com/deepresearch-app/server/internal/model"
)

// UserResolver resolves a session identifier to its active user,
// refreshing the session TTL on the way.
type UserResolver interface {
	CurrentUser(ctx context.Context, sessionID string) (model.User, error)
}

type userContextKey struct{}

// UserFromContext returns the user attached by the session gate.
func UserFromContext(ctx context.Context) (model.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(model.User)
	return user, ok
}

// Session gates a route on a valid session cookie and injects the
// resolved user into the request context. Missing or expired sessions
// answer 401; an inactive user answers 403; a session whose user row is
// gone answers 404.
func Session(resolver UserResolver, sessionCookie string, l *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sessionID string
			if c, err := r.Cookie(sessionCookie); err == nil {
				sessionID = c.Value
			}

			user, err := resolver.CurrentUser(r.Context(), sessionID)
			if err != nil {
				status := http.StatusUnauthorized
				detail := model.ErrNotAuthenticated.Error()

				switch {
				case errors.Is(err, model.ErrNotAuthenticated):
				case errors.Is(err, model.ErrAccountInactive):
					status, detail = http.StatusForbidden, err.Error()
				case errors.Is(err, model.ErrNotFound):
					status, detail = http.StatusNotFound, "user not found"
				default:
					l.Error("session resolution failed", "error", err.Error())
					status, detail = http.StatusInternalServerError, "internal server error"
				}

				writeJSONError(w, status, detail)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
