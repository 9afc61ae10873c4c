package router

import (
	"net/http"

	"github.com/deepresearch-app/server/internal/api/http/handler"
	"github.com/deepresearch-app/server/internal/api/http/middleware"
	"github.com/deepresearch-app/server/internal/logger"
)

// csrfExempt lists the paths allowed to mutate state without a token:
// the endpoints that exist to mint the session the token is bound to,
// plus the health probe.
var csrfExempt = []string{"/auth/register", "/auth/login", "/health"}

// New assembles the HTTP surface: auth endpoints, health probe, request
// logging, the CSRF gate on state-changing verbs, and the session gate
// on authenticated routes.
func New(
	auth *handler.Auth,
	health *handler.Health,
	resolver middleware.UserResolver,
	verifier middleware.CSRFVerifier,
	l *logger.Logger,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/register", auth.Register)
	mux.HandleFunc("POST /auth/login", auth.Login)
	mux.HandleFunc("POST /auth/logout", auth.Logout)
	mux.Handle("GET /auth/me",
		middleware.Session(resolver, handler.SessionCookie, l)(http.HandlerFunc(auth.Me)))
	mux.HandleFunc("GET /health", health.Check)

	var root http.Handler = mux
	root = middleware.CSRF(verifier, handler.SessionCookie, csrfExempt, l)(root)
	root = middleware.Logging(l)(root)

	return root
}
