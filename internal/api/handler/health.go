package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/andsome/alpo-core/internal/api/response"
)

// Pinger verifies a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness of the configured backends. Either backend
// may be nil in local-only deployments.
type HealthHandler struct {
	db    Pinger
	redis Pinger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db, redis Pinger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	healthy := true

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			status["database"] = "unreachable"
			healthy = false
		} else {
			status["database"] = "ok"
		}
	}
	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			status["redis"] = "unreachable"
			healthy = false
		} else {
			status["redis"] = "ok"
		}
	}

	if !healthy {
		status["status"] = "degraded"
		response.JSON(w, http.StatusServiceUnavailable, status)
		return
	}
	response.OK(w, status)
}
