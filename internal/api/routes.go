package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/voicewire/voicewire/internal/broker"
	"github.com/voicewire/voicewire/internal/relay"
)

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, b *broker.Broker, r *relay.Relay, webDir string, logger *zap.Logger) {
	// Health check
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:       "ok",
			PendingSlots: b.Registry().PendingLen(),
		})
	})

	// Prometheus metrics
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Session broker
	e.POST("/session", func(c echo.Context) error {
		return createSession(c, b, logger)
	})

	// Streaming relay
	e.GET(broker.RelayPathPrefix+":id", r.Handle)

	// Browser shell
	if webDir != "" {
		e.Static("/", webDir)
	}
}

// createSession brokers a new transcription session. The response carries
// the relay address only; the upstream credential stays in the slot.
func createSession(c echo.Context, b *broker.Broker, logger *zap.Logger) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind session request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	sess, err := b.CreateSession(c.Request().Context(), req.Language)
	if err != nil {
		switch {
		case errors.Is(err, broker.ErrInvalidLanguage):
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "Malformed language tag",
			})
		case errors.Is(err, broker.ErrUpstreamUnavailable):
			return c.JSON(http.StatusBadGateway, ErrorResponse{
				Error:   "upstream_unavailable",
				Message: "Could not reach the transcription service",
			})
		default:
			logger.Error("Session creation failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Session creation failed",
			})
		}
	}

	return c.JSON(http.StatusOK, CreateSessionResponse{
		SessionID:    sess.SessionID,
		RelayAddress: sess.RelayAddress,
	})
}
