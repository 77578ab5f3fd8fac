package http

import (
	"context"

	"mise/internal/domain/notification"
)

// MockEventHandler implements EventHandler for testing
type MockEventHandler struct {
	HandleNotificationCreatedFunc func(ctx context.Context, ev notification.NotificationCreated) (notification.Outcome, error)
	HandleMessageCreatedFunc      func(ctx context.Context, ev notification.MessageCreated) (notification.Outcome, error)
}

func (m *MockEventHandler) HandleNotificationCreated(ctx context.Context, ev notification.NotificationCreated) (notification.Outcome, error) {
	if m.HandleNotificationCreatedFunc != nil {
		return m.HandleNotificationCreatedFunc(ctx, ev)
	}
	return notification.Outcome{}, nil
}

func (m *MockEventHandler) HandleMessageCreated(ctx context.Context, ev notification.MessageCreated) (notification.Outcome, error) {
	if m.HandleMessageCreatedFunc != nil {
		return m.HandleMessageCreatedFunc(ctx, ev)
	}
	return notification.Outcome{}, nil
}

// MockDigester implements Digester for testing
type MockDigester struct {
	DigestFunc func(ctx context.Context, userID string) (notification.DigestOutcome, error)
}

func (m *MockDigester) Digest(ctx context.Context, userID string) (notification.DigestOutcome, error) {
	if m.DigestFunc != nil {
		return m.DigestFunc(ctx, userID)
	}
	return notification.DigestOutcome{}, nil
}

type MockPinger struct {
	Err error
}

func (m *MockPinger) PingContext(ctx context.Context) error {
	return m.Err
}
