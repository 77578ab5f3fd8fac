package firebase

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"mise/internal/domain/notification"
)

const fcmBatchLimit = 500

var (
	fcmTracer     = otel.Tracer("mise/push")
	fcmMeter      = otel.Meter("mise/push")
	fcmSent, _    = fcmMeter.Int64Counter("push.dispatch.sent", metric.WithDescription("Push tickets accepted by the provider"))
	fcmFailed, _  = fcmMeter.Int64Counter("push.dispatch.failed", metric.WithDescription("Push tickets rejected or lost"))
	providerAttrs = metric.WithAttributes(attribute.String("provider", "fcm"))
)

// MulticastSender is the subset of *messaging.Client the dispatcher uses.
type MulticastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Client implements notification.Dispatcher using Firebase Cloud Messaging
type Client struct {
	sender MulticastSender
	logger *zap.Logger
}

// NewClient initializes a Firebase app and returns an FCM dispatcher.
func NewClient(ctx context.Context, credentialsFile string, logger *zap.Logger) (*Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging client: %w", err)
	}

	return NewClientWithSender(msgClient, logger), nil
}

// NewClientWithSender wraps an existing sender.
func NewClientWithSender(sender MulticastSender, logger *zap.Logger) *Client {
	return &Client{sender: sender, logger: logger.Named("fcm")}
}

// Dispatch sends msg to every token, batching into chunks of 500 (Firebase
// API limit). A failed batch counts all of its tokens as failed.
func (c *Client) Dispatch(ctx context.Context, tokens []string, msg notification.PushMessage) notification.DispatchResult {
	if len(tokens) == 0 {
		return notification.DispatchResult{}
	}

	ctx, span := fcmTracer.Start(ctx, "push.dispatch", trace.WithAttributes(
		attribute.String("push.provider", "fcm"),
		attribute.Int("push.tokens", len(tokens)),
	))
	defer span.End()

	var result notification.DispatchResult
	for _, batch := range chunkTokens(tokens, fcmBatchLimit) {
		resp, err := c.sender.SendEachForMulticast(ctx, toMulticast(batch, msg))
		if err != nil {
			span.RecordError(err)
			c.logger.Error("FCM multicast failed", zap.Int("tokens", len(batch)), zap.Error(err))
			result.Failed += len(batch)
			continue
		}

		result.Sent += resp.SuccessCount
		result.Failed += len(batch) - resp.SuccessCount
		if resp.FailureCount > 0 {
			c.logMulticastFailures(resp)
		}
	}

	span.SetAttributes(attribute.Int("push.sent", result.Sent), attribute.Int("push.failed", result.Failed))
	fcmSent.Add(ctx, int64(result.Sent), providerAttrs)
	fcmFailed.Add(ctx, int64(result.Failed), providerAttrs)

	c.logger.Debug("FCM multicast", zap.Int("success", result.Sent), zap.Int("failure", result.Failed))
	return result
}

func toMulticast(tokens []string, msg notification.PushMessage) *messaging.MulticastMessage {
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{
				ChannelID: msg.ChannelID,
				Sound:     "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
					Badge: msg.Badge,
				},
			},
		},
	}
}

// logMulticastFailures reports rejected tokens. Tokens are never deactivated
// here; the pipeline does not write to the store.
func (c *Client) logMulticastFailures(resp *messaging.BatchResponse) {
	for i, sendResp := range resp.Responses {
		if sendResp == nil || sendResp.Error == nil {
			continue
		}
		if messaging.IsUnregistered(sendResp.Error) || messaging.IsInvalidArgument(sendResp.Error) {
			c.logger.Warn("invalid FCM token", zap.Int("index", i), zap.Error(sendResp.Error))
		} else {
			c.logger.Warn("FCM send error", zap.Int("index", i), zap.Error(sendResp.Error))
		}
	}
}

func chunkTokens(tokens []string, size int) [][]string {
	var chunks [][]string
	for i := 0; i < len(tokens); i += size {
		end := i + size
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, tokens[i:end])
	}
	return chunks
}
