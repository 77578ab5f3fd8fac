package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	handlerNotificationCreated = "notification_created"
	handlerMessageCreated      = "message_created"
	handlerDigest              = "digest"

	// DigestWindow is the trailing period a digest summarizes.
	DigestWindow = 24 * time.Hour
)

var (
	serviceMeter     = otel.Meter("mise/notification")
	eventOutcomes, _ = serviceMeter.Int64Counter("push.event.outcome",
		metric.WithDescription("Handled push events by handler, outcome and reason"),
	)
)

// Service turns inserted rows into pushes: it resolves recipients, applies
// mute and preference rules, composes the content and dispatches it.
type Service struct {
	store      RecipientStore
	dispatcher Dispatcher
	logger     *zap.Logger
	appTitle   string
	now        func() time.Time
}

// NewService creates a new push pipeline service. appTitle is the title of
// notification pushes.
func NewService(store RecipientStore, dispatcher Dispatcher, logger *zap.Logger, appTitle string) *Service {
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger.Named("notification"),
		appTitle:   appTitle,
		now:        time.Now,
	}
}

// HandleNotificationCreated pushes a single notification row to its owner.
func (s *Service) HandleNotificationCreated(ctx context.Context, ev NotificationCreated) (Outcome, error) {
	if ev.UserID == "" {
		return s.skip(ctx, handlerNotificationCreated, ReasonNoUserID), nil
	}

	profile, err := s.store.GetProfile(ctx, ev.UserID)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return Outcome{}, fmt.Errorf("failed to resolve profile %s: %w", ev.UserID, err)
	}

	eventType := EventType(ev.Type)
	if !eventType.Known() {
		s.logger.Warn("unknown notification type, using generic content",
			zap.String("notification_id", ev.ID),
			zap.String("type", ev.Type),
		)
	}
	recipients, reason := Filter([]Recipient{{UserID: ev.UserID, Profile: profile}}, eventType.Spec().PreferenceColumn)
	switch reason {
	case "":
	case ReasonAllPreferenceDisabled:
		return s.skip(ctx, handlerNotificationCreated, ReasonUserPreferenceDisabled), nil
	default:
		return s.skip(ctx, handlerNotificationCreated, ReasonNoPushToken), nil
	}

	var (
		actorName   string
		unreadCount int
	)
	g, gctx := errgroup.WithContext(ctx)
	if ev.ActorID != "" {
		g.Go(func() error {
			actorName = s.lookupName(gctx, ev.ActorID)
			return nil
		})
	}
	g.Go(func() error {
		n, err := s.store.CountUnread(gctx, ev.UserID, time.Time{})
		if err != nil {
			return fmt.Errorf("failed to count unread notifications for %s: %w", ev.UserID, err)
		}
		unreadCount = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return Outcome{}, err
	}

	body, channel := ActorEventContent(eventType, actorName)
	data := map[string]string{
		"type":        ev.Type,
		"unreadCount": strconv.Itoa(unreadCount),
	}
	setIfPresent(data, "notificationId", ev.ID)
	setIfPresent(data, "actorId", ev.ActorID)
	setIfPresent(data, "targetId", ev.TargetID)
	setIfPresent(data, "targetType", ev.TargetType)

	result := s.dispatcher.Dispatch(ctx, Tokens(recipients), PushMessage{
		Title:     s.appTitle,
		Body:      body,
		Data:      data,
		ChannelID: channel,
		Badge:     &unreadCount,
	})

	s.logger.Info("notification push dispatched",
		zap.String("user_id", ev.UserID),
		zap.String("type", ev.Type),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)
	return s.dispatched(ctx, handlerNotificationCreated, result), nil
}

// HandleMessageCreated pushes a conversation message to every other
// participant that has not muted the conversation or disabled direct
// message pushes.
func (s *Service) HandleMessageCreated(ctx context.Context, ev MessageCreated) (Outcome, error) {
	if ev.ConversationID == "" || ev.SenderID == "" {
		return s.skip(ctx, handlerMessageCreated, ReasonMissingFields), nil
	}

	participants, err := s.store.ListParticipants(ctx, ev.ConversationID, ev.SenderID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to list participants of %s: %w", ev.ConversationID, err)
	}
	if len(participants) == 0 {
		return s.skip(ctx, handlerMessageCreated, ReasonNoRecipients), nil
	}

	unmuted := Unmuted(participants)
	if len(unmuted) == 0 {
		return s.skip(ctx, handlerMessageCreated, ReasonAllMuted), nil
	}

	var (
		profiles   []*Profile
		senderName string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.store.GetProfilesWithTokens(gctx, unmuted)
		if err != nil {
			return fmt.Errorf("failed to resolve recipient profiles: %w", err)
		}
		profiles = p
		return nil
	})
	g.Go(func() error {
		senderName = s.lookupName(gctx, ev.SenderID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Outcome{}, err
	}

	byID := make(map[string]*Profile, len(profiles))
	for _, p := range profiles {
		byID[p.UserID] = p
	}
	candidates := make([]Recipient, 0, len(participants))
	for _, p := range participants {
		candidates = append(candidates, Recipient{UserID: p.UserID, Muted: p.IsMuted, Profile: byID[p.UserID]})
	}

	recipients, reason := Filter(candidates, DirectMessageColumn)
	switch reason {
	case "":
	case ReasonAllPreferenceDisabled:
		return s.skip(ctx, handlerMessageCreated, ReasonAllDirectMessageDisabled), nil
	default:
		return s.skip(ctx, handlerMessageCreated, reason), nil
	}

	data := map[string]string{
		"type":           "message",
		"conversationId": ev.ConversationID,
		"senderId":       ev.SenderID,
	}
	setIfPresent(data, "messageId", ev.ID)

	result := s.dispatcher.Dispatch(ctx, Tokens(recipients), PushMessage{
		Title:     displayName(senderName),
		Body:      MessagePreview(ev.Kind(), ev.Content),
		Data:      data,
		ChannelID: ChannelMessages,
	})

	s.logger.Info("message push dispatched",
		zap.String("conversation_id", ev.ConversationID),
		zap.String("sender_id", ev.SenderID),
		zap.Int("recipients", len(recipients)),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)
	return s.dispatched(ctx, handlerMessageCreated, result), nil
}

// Digest rolls the last day of activity into a single push. It returns
// ErrNoPushToken when the user cannot receive pushes.
func (s *Service) Digest(ctx context.Context, userID string) (DigestOutcome, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return DigestOutcome{}, ErrNoPushToken
		}
		return DigestOutcome{}, fmt.Errorf("failed to resolve profile %s: %w", userID, err)
	}
	if !profile.HasPushToken() {
		return DigestOutcome{}, ErrNoPushToken
	}

	since := s.now().Add(-DigestWindow)
	unreadCount, err := s.store.CountUnread(ctx, userID, since)
	if err != nil {
		return DigestOutcome{}, fmt.Errorf("failed to count unread notifications for %s: %w", userID, err)
	}
	if unreadCount == 0 {
		s.recordOutcome(ctx, handlerDigest, "skipped", ReasonNoUnread)
		return DigestOutcome{Reason: ReasonNoUnread}, nil
	}

	newPostCount, err := s.store.CountNewPostsFromFollowed(ctx, userID, since)
	if err != nil {
		return DigestOutcome{}, fmt.Errorf("failed to count new posts for %s: %w", userID, err)
	}

	result := s.dispatcher.Dispatch(ctx, []string{profile.PushToken}, PushMessage{
		Title: digestTitle,
		Body:  DigestBody(unreadCount, newPostCount),
		Data: map[string]string{
			"type":         "digest",
			"unreadCount":  strconv.Itoa(unreadCount),
			"newPostCount": strconv.Itoa(newPostCount),
		},
		ChannelID: ChannelDigest,
	})
	s.recordOutcome(ctx, handlerDigest, "dispatched", "")

	s.logger.Info("digest dispatched",
		zap.String("user_id", userID),
		zap.Int("unread", unreadCount),
		zap.Int("new_posts", newPostCount),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)
	return DigestOutcome{
		Sent:         true,
		Result:       result,
		UnreadCount:  unreadCount,
		NewPostCount: newPostCount,
	}, nil
}

// lookupName resolves a display name, returning "" on any failure.
func (s *Service) lookupName(ctx context.Context, userID string) string {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrProfileNotFound) {
			s.logger.Warn("display name lookup failed", zap.String("user_id", userID), zap.Error(err))
		}
		return ""
	}
	return profile.DisplayName
}

func (s *Service) skip(ctx context.Context, handler string, reason SkipReason) Outcome {
	s.logger.Debug("push skipped", zap.String("handler", handler), zap.String("reason", string(reason)))
	s.recordOutcome(ctx, handler, "skipped", reason)
	return Skip(reason)
}

func (s *Service) dispatched(ctx context.Context, handler string, result DispatchResult) Outcome {
	s.recordOutcome(ctx, handler, "dispatched", "")
	return Dispatched(result)
}

func (s *Service) recordOutcome(ctx context.Context, handler, outcome string, reason SkipReason) {
	eventOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("handler", handler),
		attribute.String("outcome", outcome),
		attribute.String("reason", string(reason)),
	))
}

func setIfPresent(data map[string]string, key, value string) {
	if value != "" {
		data[key] = value
	}
}
