package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/verigate/verigate/internal/waitlist"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	registry *waitlist.Registry
	logger   *zap.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(registry *waitlist.Registry, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{registry: registry, logger: logger}
}

// Health handles GET /api/v1/health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"active_waiters": h.registry.ActiveWaiters(),
	})
}
