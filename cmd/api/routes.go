package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"mise/internal/shared/config"
	"mise/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", deps.HealthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", deps.HealthHandler.HandleReady)

	// Database webhooks
	webhookAuth := middleware.WebhookSecret(cfg.Webhook.Secret)
	mux.Handle("POST /webhooks/notifications", webhookAuth(http.HandlerFunc(deps.WebhookHandler.HandleNotificationCreated)))
	mux.Handle("POST /webhooks/messages", webhookAuth(http.HandlerFunc(deps.WebhookHandler.HandleMessageCreated)))

	// Protected routes
	authMiddleware := middleware.Auth(deps.JWT)
	mux.Handle("POST /api/digest", authMiddleware(deps.DigestLimiter.Middleware(http.HandlerFunc(deps.DigestHandler.HandleDigest))))

	var handler http.Handler = mux
	if cfg.Server.RequestTimeout > 0 {
		handler = http.TimeoutHandler(handler, cfg.Server.RequestTimeout+5*time.Second, `{"error":"request timed out"}`)
	}
	handler = middleware.Tracing(handler)
	handler = middleware.Logging(logger)(handler)
	if cfg.Telemetry.Enabled {
		handler = middleware.Telemetry(cfg.Telemetry.ServiceName)(handler)
	}

	return handler
}
