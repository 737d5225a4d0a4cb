package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/voicewire/voicewire/internal/api"
	"github.com/voicewire/voicewire/internal/broker"
	"github.com/voicewire/voicewire/internal/config"
	"github.com/voicewire/voicewire/internal/metrics"
	"github.com/voicewire/voicewire/internal/realtime"
	"github.com/voicewire/voicewire/internal/relay"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Upstream client, slot registry, and the services around them
	minter := realtime.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamAPIKey, logger)
	registry := broker.NewRegistry()
	b := broker.New(broker.Config{
		Model:           cfg.TranscriptionModel,
		DefaultLanguage: cfg.DefaultLanguage,
		NoiseReduction:  cfg.NoiseReduction,
		VADThreshold:    cfg.VADThreshold,
		VADPrefixMs:     cfg.VADPrefixMs,
		VADSilenceMs:    cfg.VADSilenceMs,
	}, minter, registry, logger, metrics.DefaultMetrics)
	r := relay.New(registry, cfg.RealtimeURL, nil, logger, metrics.DefaultMetrics)

	sweeper := broker.NewSweeper(registry, cfg.SlotTTL, cfg.SweepInterval, logger, metrics.DefaultMetrics)
	sweeper.Start()
	defer sweeper.Stop()

	// Initialize API routes
	api.InitRoutes(e, b, r, cfg.WebDir, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", cfg.ListenAddr))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
