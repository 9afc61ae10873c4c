package handler

import (
	"context"
	"net/http"

	"github.com/deepresearch-app/server/internal/logger"
)

// Pinger is a point-in-time availability check on a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports liveness of the key-value store and the database.
type Health struct {
	kv     Pinger
	db     Pinger
	logger *logger.Logger
}

// NewHealth creates the health handler.
func NewHealth(kv, db Pinger, l *logger.Logger) *Health {
	return &Health{kv: kv, db: db, logger: l}
}

// Check handles GET /health.
func (h *Health) Check(w http.ResponseWriter, r *http.Request) {
	if err := h.kv.Ping(r.Context()); err != nil {
		h.logger.Error("health check: key-value store unreachable", "error", err.Error())
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.Error("health check: database unreachable", "error", err.Error())
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
