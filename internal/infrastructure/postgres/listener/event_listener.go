package listener

import (
	"context"
	_ "embed"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"mise/internal/domain/notification"
)

const (
	ChannelNotificationCreated = "notification_created"
	ChannelMessageCreated      = "message_created"

	reconnectInterval = 5 * time.Second
	pingInterval      = 90 * time.Second
	defaultTimeout    = 15 * time.Second
)

// TriggersSQL installs the row triggers that publish inserted notification
// and message rows on the channels above.
//
//go:embed triggers.sql
var TriggersSQL string

// EventHandler receives decoded row events.
type EventHandler interface {
	HandleNotificationCreated(ctx context.Context, ev notification.NotificationCreated) (notification.Outcome, error)
	HandleMessageCreated(ctx context.Context, ev notification.MessageCreated) (notification.Outcome, error)
}

// EventListener turns PostgreSQL NOTIFY payloads into pipeline events.
type EventListener struct {
	connStr    string
	handler    EventHandler
	logger     *zap.Logger
	timeout    time.Duration
	shutdownCh chan struct{}
	done       chan struct{}
	inflight   sync.WaitGroup
}

// NewEventListener creates a listener; timeout bounds the handling of a
// single event and defaults to 15s.
func NewEventListener(connStr string, handler EventHandler, logger *zap.Logger, timeout time.Duration) *EventListener {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &EventListener{
		connStr:    connStr,
		handler:    handler,
		logger:     logger.Named("listener"),
		timeout:    timeout,
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins listening for notifications in a background goroutine
func (l *EventListener) Start(ctx context.Context) {
	go l.listen(ctx)
	l.logger.Info("event listener started",
		zap.Strings("channels", []string{ChannelNotificationCreated, ChannelMessageCreated}))
}

// Stop gracefully shuts down the listener and waits for in-flight events.
func (l *EventListener) Stop() {
	close(l.shutdownCh)
	<-l.done
	l.inflight.Wait()
	l.logger.Info("event listener stopped")
}

func (l *EventListener) listen(ctx context.Context) {
	defer close(l.done)

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		default:
			l.connectAndListen(ctx)
		}

		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			l.logger.Info("reconnecting to PostgreSQL for notifications")
		}
	}
}

func (l *EventListener) connectAndListen(ctx context.Context) {
	listener := pq.NewListener(l.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			l.logger.Info("connected to notification channel")
		case pq.ListenerEventDisconnected:
			l.logger.Warn("disconnected from notification channel", zap.Error(err))
		case pq.ListenerEventReconnected:
			l.logger.Info("reconnected to notification channel")
		case pq.ListenerEventConnectionAttemptFailed:
			l.logger.Warn("connection attempt failed", zap.Error(err))
		}
	})
	defer listener.Close()

	for _, channel := range []string{ChannelNotificationCreated, ChannelMessageCreated} {
		if err := listener.Listen(channel); err != nil {
			l.logger.Error("failed to listen on channel", zap.String("channel", channel), zap.Error(err))
			return
		}
	}

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case n := <-listener.Notify:
			if n == nil {
				// connection lost; pq re-establishes it, the payloads in between are gone
				continue
			}
			l.inflight.Add(1)
			go func() {
				defer l.inflight.Done()
				l.handleNotification(n)
			}()
		case <-time.After(pingInterval):
			go func() {
				if err := listener.Ping(); err != nil {
					l.logger.Warn("listener ping failed", zap.Error(err))
				}
			}()
		}
	}
}

// handleNotification runs detached from the listen context so that an event
// already received still completes during shutdown.
func (l *EventListener) handleNotification(n *pq.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	var (
		outcome notification.Outcome
		err     error
	)
	switch n.Channel {
	case ChannelNotificationCreated:
		var ev notification.NotificationCreated
		if err := notification.DecodeRecord([]byte(n.Extra), &ev); err != nil {
			l.logger.Warn("event skipped",
				zap.String("channel", n.Channel),
				zap.String("reason", string(notification.ReasonInvalidPayload)),
				zap.Error(err),
			)
			return
		}
		outcome, err = l.handler.HandleNotificationCreated(ctx, ev)
	case ChannelMessageCreated:
		var ev notification.MessageCreated
		if err := notification.DecodeRecord([]byte(n.Extra), &ev); err != nil {
			l.logger.Warn("event skipped",
				zap.String("channel", n.Channel),
				zap.String("reason", string(notification.ReasonInvalidPayload)),
				zap.Error(err),
			)
			return
		}
		outcome, err = l.handler.HandleMessageCreated(ctx, ev)
	default:
		l.logger.Warn("notification on unexpected channel", zap.String("channel", n.Channel))
		return
	}

	if err != nil {
		l.logger.Error("failed to handle event", zap.String("channel", n.Channel), zap.Error(err))
		return
	}
	if outcome.Skipped {
		l.logger.Debug("event skipped", zap.String("channel", n.Channel), zap.String("reason", string(outcome.Reason)))
		return
	}
	l.logger.Debug("event dispatched",
		zap.String("channel", n.Channel),
		zap.Int("sent", outcome.Result.Sent),
		zap.Int("failed", outcome.Result.Failed),
	)
}
