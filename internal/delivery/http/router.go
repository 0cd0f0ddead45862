package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/verigate/verigate/internal/delivery/http/middleware"
	"github.com/verigate/verigate/internal/usecase"
	"github.com/verigate/verigate/internal/waitlist"
)

// RouterDeps bundles everything the router needs.
type RouterDeps struct {
	SubmitUC        *usecase.SubmitVerificationUsecase
	WebhookUC       *usecase.CompleteVerificationUsecase
	StatusUC        *usecase.GetStatusUsecase
	Registry        *waitlist.Registry
	Logger          *zap.Logger
	RateLimitPerMin int
	MaxBodyBytes    int64
}

// NewRouter creates and configures the Gin router with all routes and middleware.
func NewRouter(deps *RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.BodySizeLimit(deps.MaxBodyBytes))

	// Metrics endpoint (no rate limiting)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Health check (no rate limiting)
		healthHandler := NewHealthHandler(deps.Registry, deps.Logger)
		v1.GET("/health", healthHandler.Health)

		limited := v1.Group("")
		if deps.RateLimitPerMin > 0 {
			limited.Use(middleware.RateLimiter(deps.RateLimitPerMin))
		}

		// Long-poll verification and status reads
		verifyHandler := NewVerifyHandler(deps.SubmitUC, deps.StatusUC, deps.Logger)
		limited.POST("/verify", verifyHandler.Verify)
		limited.GET("/status/:correlationId", verifyHandler.Status)

		// Inbound idempotent callback
		webhookHandler := NewWebhookHandler(deps.WebhookUC, deps.Logger)
		limited.POST("/webhook", webhookHandler.Deliver)

		// WebSocket for real-time record updates
		wsHandler := NewWebSocketHandler(deps.StatusUC, deps.Logger)
		v1.GET("/status/:correlationId/stream", wsHandler.Stream)
	}

	return router
}
