package http

import (
	"context"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"mise/internal/domain/notification"
)

// EventHandler is implemented by notification.Service.
type EventHandler interface {
	HandleNotificationCreated(ctx context.Context, ev notification.NotificationCreated) (notification.Outcome, error)
	HandleMessageCreated(ctx context.Context, ev notification.MessageCreated) (notification.Outcome, error)
}

type WebhookHandler struct {
	events EventHandler
	logger *zap.Logger
}

func NewWebhookHandler(events EventHandler, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{events: events, logger: logger.Named("webhook")}
}

type SkippedResponse struct {
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason"`
}

type DispatchResponse struct {
	Data notification.DispatchResult `json:"data"`
}

// HandleNotificationCreated handles POST /webhooks/notifications
func (h *WebhookHandler) HandleNotificationCreated(w http.ResponseWriter, r *http.Request) {
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("mise.event", "notification_created"))

	var ev notification.NotificationCreated
	if !h.decode(w, r, &ev) {
		return
	}
	span.SetAttributes(
		attribute.String("mise.notification.type", ev.Type),
		attribute.String("mise.user_id", ev.UserID),
	)

	outcome, err := h.events.HandleNotificationCreated(r.Context(), ev)
	if err != nil {
		h.logger.Error("notification event failed",
			zap.String("notification_id", ev.ID),
			zap.String("user_id", ev.UserID),
			zap.String("type", ev.Type),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Failed to process notification")
		return
	}
	writeOutcome(w, r, outcome)
}

// HandleMessageCreated handles POST /webhooks/messages
func (h *WebhookHandler) HandleMessageCreated(w http.ResponseWriter, r *http.Request) {
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("mise.event", "message_created"))

	var ev notification.MessageCreated
	if !h.decode(w, r, &ev) {
		return
	}
	span.SetAttributes(attribute.String("mise.conversation_id", ev.ConversationID))

	outcome, err := h.events.HandleMessageCreated(r.Context(), ev)
	if err != nil {
		h.logger.Error("message event failed",
			zap.String("message_id", ev.ID),
			zap.String("conversation_id", ev.ConversationID),
			zap.String("sender_id", ev.SenderID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Failed to process message")
		return
	}
	writeOutcome(w, r, outcome)
}

// decode reads the row into v. An undecodable row is answered with an
// "invalid payload" skip, so the database does not redeliver it.
func (h *WebhookHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return false
	}
	if err := notification.DecodeRecord(data, v); err != nil {
		h.logger.Warn("invalid webhook payload", zap.String("path", r.URL.Path), zap.Error(err))
		writeOutcome(w, r, notification.Skip(notification.ReasonInvalidPayload))
		return false
	}
	return true
}

func writeOutcome(w http.ResponseWriter, r *http.Request, outcome notification.Outcome) {
	span := trace.SpanFromContext(r.Context())
	if outcome.Skipped {
		span.SetAttributes(attribute.String("mise.skip_reason", string(outcome.Reason)))
		writeJSON(w, http.StatusOK, SkippedResponse{Skipped: true, Reason: string(outcome.Reason)})
		return
	}
	span.SetAttributes(
		attribute.Int("push.sent", outcome.Result.Sent),
		attribute.Int("push.failed", outcome.Result.Failed),
	)
	writeJSON(w, http.StatusOK, DispatchResponse{Data: outcome.Result})
}
