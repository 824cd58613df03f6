// Package health exposes the liveness and readiness probe endpoints.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/parley-im/parley/internal/v1/logging"
)

// ReadyChecker is the dependency a readiness probe verifies. The
// coordinator satisfies it.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// Handler manages the health check endpoints.
type Handler struct {
	coordinator ReadyChecker
}

// NewHandler creates a health handler probing coordinator.
func NewHandler(coordinator ReadyChecker) *Handler {
	return &Handler{coordinator: coordinator}
}

// LivenessResponse is the liveness probe body.
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse is the readiness probe body.
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles GET /health/live. It returns 200 whenever the process
// is alive; no dependencies are checked.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness handles GET /health/ready. It returns 200 only while the
// coordinator loop answers requests, 503 otherwise.
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := map[string]string{"coordinator": "healthy"}

	if err := h.coordinator.Ready(ctx); err != nil {
		logging.Warn(ctx, "readiness check failed", zap.Error(err))
		status = "not ready"
		code = http.StatusServiceUnavailable
		checks["coordinator"] = "unhealthy"
	}

	c.JSON(code, ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
