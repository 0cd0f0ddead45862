package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/verigate/verigate/internal/coalesce"
	"github.com/verigate/verigate/internal/config"
	handler "github.com/verigate/verigate/internal/delivery/http"
	"github.com/verigate/verigate/internal/store"
	"github.com/verigate/verigate/internal/upstream"
	"github.com/verigate/verigate/internal/usecase"
	"github.com/verigate/verigate/internal/waitlist"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting Verigate gateway")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// Shared in-process state: everything is node-local and volatile.
	cache := store.NewIdempotencyCache()
	locks := store.NewLockTable()
	records := store.NewRecordStore()
	registry := waitlist.NewRegistry(records, logger)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	cache.StartSweeper(sweepCtx, cfg.Gateway.SweepInterval)

	coalescer := coalesce.New(cache, locks, coalesce.Options{
		IdempotencyTTL: cfg.Gateway.IdempotencyTTL,
		LockTTL:        cfg.Gateway.LockTTL,
		PollInterval:   cfg.Gateway.PollInterval,
		Grace:          cfg.Gateway.FollowerGrace,
	}, logger)

	// Outbound leg to the external verifier
	submitter := upstream.NewHTTPSubmitter(cfg.Upstream.URL, cfg.Upstream.CallbackURL, logger)

	// Initialize use cases
	submitUC := usecase.NewSubmitVerificationUsecase(registry, submitter, cfg.Gateway.LongPollTimeout, logger)
	webhookUC := usecase.NewCompleteVerificationUsecase(coalescer, registry, logger)
	statusUC := usecase.NewGetStatusUsecase(records, logger)

	// Initialize router
	router := handler.NewRouter(&handler.RouterDeps{
		SubmitUC:        submitUC,
		WebhookUC:       webhookUC,
		StatusUC:        statusUC,
		Registry:        registry,
		Logger:          logger,
		RateLimitPerMin: cfg.Server.RateLimit,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Gateway listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down gateway...")

	// Answer every parked long-poll before closing the listener so no
	// connection is dropped with an unresolved waiter.
	registry.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Gateway stopped")
}
