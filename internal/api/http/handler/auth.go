package handler

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/deepresearch-app/server/internal/api/http/middleware"
	"github.com/deepresearch-app/server/internal/logger"
	"github.com/deepresearch-app/server/internal/model"
	"github.com/deepresearch-app/server/internal/service"
)

// Cookie names shared with the CSRF gate and the frontend.
const (
	SessionCookie = "session_id"
	CSRFCookie    = "csrf_token"
)

// AuthService is the slice of the auth service the handlers need.
type AuthService interface {
	Register(ctx context.Context, email, password string) (model.User, error)
	Login(ctx context.Context, email, password, clientIP string) (service.LoginResult, error)
	Logout(ctx context.Context, sessionID string)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userPayload struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type authResponse struct {
	Message string      `json:"message"`
	User    userPayload `json:"user"`
}

// Auth exposes the /auth endpoints.
type Auth struct {
	service    AuthService
	sessionTTL time.Duration
	logger     *logger.Logger
}

// NewAuth creates the auth handler set. sessionTTL bounds the cookie
// max-age to the session lifetime.
func NewAuth(svc AuthService, sessionTTL time.Duration, l *logger.Logger) *Auth {
	return &Auth{
		service:    svc,
		sessionTTL: sessionTTL,
		logger:     l,
	}
}

// Register handles POST /auth/register.
func (h *Auth) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	user, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		Message: "User registered successfully",
		User:    toPayload(user),
	})
}

// Login handles POST /auth/login. On success it sets the HttpOnly
// session cookie and the script-readable CSRF cookie.
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password, clientIP(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	maxAge := int(h.sessionTTL.Seconds())
	http.SetCookie(w, sessionCookie(result.SessionID, maxAge))
	http.SetCookie(w, csrfCookie(result.CSRFToken, maxAge))

	writeJSON(w, http.StatusOK, authResponse{
		Message: "Logged in successfully",
		User:    toPayload(result.User),
	})
}

// Logout handles POST /auth/logout. It succeeds and clears both cookies
// whether or not a session cookie was presented.
func (h *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		h.service.Logout(r.Context(), c.Value)
	}

	http.SetCookie(w, sessionCookie("", -1))
	http.SetCookie(w, csrfCookie("", -1))

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// Me handles GET /auth/me for the user resolved by the session gate.
func (h *Auth) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, model.ErrNotAuthenticated)
		return
	}

	writeJSON(w, http.StatusOK, toPayload(user))
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid request body"})
		return credentialsRequest{}, false
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid email address"})
		return credentialsRequest{}, false
	}

	return req, true
}

func toPayload(user model.User) userPayload {
	return userPayload{
		ID:        user.ID,
		Email:     user.Email,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	}
}

func sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// csrfCookie is intentionally not HttpOnly: the double-submit pattern
// requires the frontend to read it and echo it back in X-CSRF-Token.
func csrfCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CSRFCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
