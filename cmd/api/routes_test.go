package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mise/internal/domain/notification"
	httphandlers "mise/internal/interfaces/http"
	"mise/internal/shared/auth"
	"mise/internal/shared/config"
	"mise/internal/shared/middleware"
)

type stubEvents struct{}

func (stubEvents) HandleNotificationCreated(ctx context.Context, ev notification.NotificationCreated) (notification.Outcome, error) {
	return notification.Skip(notification.ReasonNoPushToken), nil
}

func (stubEvents) HandleMessageCreated(ctx context.Context, ev notification.MessageCreated) (notification.Outcome, error) {
	return notification.Skip(notification.ReasonAllMuted), nil
}

type stubDigester struct{}

func (stubDigester) Digest(ctx context.Context, userID string) (notification.DigestOutcome, error) {
	return notification.DigestOutcome{Reason: notification.ReasonNoUnread}, nil
}

type stubPinger struct{}

func (stubPinger) PingContext(ctx context.Context) error { return nil }

func testRouter(t *testing.T) (http.Handler, *auth.JWT) {
	t.Helper()
	cfg := &config.Config{
		Server:  config.ServerConfig{RequestTimeout: time.Second},
		Webhook: config.WebhookConfig{Secret: "hook-secret"},
	}
	jwt := auth.NewJWT("jwt-secret")
	deps := &Dependencies{
		WebhookHandler: httphandlers.NewWebhookHandler(stubEvents{}, zap.NewNop()),
		DigestHandler:  httphandlers.NewDigestHandler(stubDigester{}, zap.NewNop()),
		HealthHandler:  httphandlers.NewHealthHandler(stubPinger{}),
		JWT:            jwt,
		DigestLimiter:  middleware.NewRateLimiter(60, 5),
	}
	return SetupRoutes(deps, cfg, zap.NewNop()), jwt
}

func TestRoutes_Webhooks(t *testing.T) {
	router, _ := testRouter(t)

	tests := []struct {
		name   string
		path   string
		secret string
		want   int
		body   string
	}{
		{"notification with secret", "/webhooks/notifications", "hook-secret", http.StatusOK, `{"skipped":true,"reason":"no_push_token"}`},
		{"message with secret", "/webhooks/messages", "hook-secret", http.StatusOK, `{"skipped":true,"reason":"all_muted"}`},
		{"missing secret", "/webhooks/messages", "", http.StatusUnauthorized, `{"error":"invalid webhook secret"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(`{"record":{}}`))
			if tt.secret != "" {
				req.Header.Set(middleware.WebhookSecretHeader, tt.secret)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.want, rr.Code)
			assert.JSONEq(t, tt.body, rr.Body.String())
			assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))
		})
	}
}

func TestRoutes_Digest(t *testing.T) {
	router, jwt := testRouter(t)
	token, err := jwt.Generate("u1", "u1@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/digest", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/digest", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":{"sent":false,"reason":"no_unread"}}`, rr.Body.String())
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	router, _ := testRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/webhooks/notifications", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
