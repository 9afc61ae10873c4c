package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/deepresearch-app/server/internal/logger"
	"github.com/deepresearch-app/server/internal/model"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the domain error taxonomy onto HTTP status codes.
// Anything outside the taxonomy, including key-value store outages, is
// logged server-side and surfaced as a generic 500 that reveals nothing
// about the backend.
func writeError(w http.ResponseWriter, l *logger.Logger, err error) {
	switch {
	case errors.Is(err, model.ErrWeakPassword),
		errors.Is(err, model.ErrEmailTaken):
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: err.Error()})
	case errors.Is(err, model.ErrInvalidCredentials),
		errors.Is(err, model.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Detail: err.Error()})
	case errors.Is(err, model.ErrAccountLocked),
		errors.Is(err, model.ErrAccountInactive):
		writeJSON(w, http.StatusForbidden, errorResponse{Detail: err.Error()})
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: "user not found"})
	case errors.Is(err, model.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Detail: err.Error()})
	default:
		l.Error("request failed", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "internal server error"})
	}
}
