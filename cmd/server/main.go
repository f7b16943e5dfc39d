package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/savings-circles/internal/api"
	"github.com/rongwang/savings-circles/internal/config"
	"github.com/rongwang/savings-circles/internal/metrics"
	"github.com/rongwang/savings-circles/internal/ratelimit"
	"github.com/rongwang/savings-circles/internal/repository"
	"github.com/rongwang/savings-circles/internal/service"
	"github.com/rongwang/savings-circles/internal/utils"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()
	logger := utils.NewLogger(cfg.Log.Level)

	// Set up storage
	repo, closeRepo, err := repository.Open(cfg)
	if err != nil {
		logger.Fatalf("Failed to set up database: %v", err)
	}
	defer closeRepo()
	logger.WithField("driver", cfg.Database.Driver).Info("storage ready")

	m := metrics.New()

	svc := service.NewDefaultService(repo, service.Options{
		JWTSecret:              cfg.Auth.JWTSecret,
		TokenTTL:               cfg.Auth.TokenTTL,
		DefaultAmountPerMember: cfg.Circle.DefaultAmountPerMember,
		AutoApproveInvites:     cfg.Circle.AutoApproveInvites,
		Logger:                 logger,
		Metrics:                m,
	})

	handler := api.NewHandler(svc, logger)

	// Rate limiting is enabled only when redis is configured
	if cfg.RateLimit.RedisURL != "" {
		rl, err := ratelimit.NewRateLimiter(context.Background(), cfg.RateLimit.RedisURL)
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rl.Close()
		handler.WithRateLimit(rl, cfg.RateLimit.RequestsPerMin, cfg.RateLimit.AuthRequestsMin)
		logger.Info("rate limiting enabled")
	}

	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(
		gin.Recovery(),
		api.RequestLogger(logger),
		api.MetricsMiddleware(m),
		api.JWTSecretMiddleware(cfg.Auth.JWTSecret),
	)
	router.GET("/metrics", gin.WrapH(m.Handler()))
	handler.SetupRoutes(router)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Infof("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Received shutdown signal...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	logger.Info("Server stopped")
}
