package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mise/internal/domain/notification"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns ErrMiss when the key is absent.
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// CachedRecipientStore adds read-aside caching of profile lookups to any
// notification.RecipientStore. Counts and participant lists always go to
// the underlying store; they change with every insert.
type CachedRecipientStore struct {
	notification.RecipientStore
	cache  CacheClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedRecipientStore(store notification.RecipientStore, cache CacheClient, ttl time.Duration, logger *zap.Logger) *CachedRecipientStore {
	return &CachedRecipientStore{
		RecipientStore: store,
		cache:          cache,
		ttl:            ttl,
		logger:         logger.Named("profile_cache"),
	}
}

// GetProfile serves from the cache when possible. Missing profiles are not
// cached so a freshly created profile is visible immediately.
func (s *CachedRecipientStore) GetProfile(ctx context.Context, userID string) (*notification.Profile, error) {
	key := cacheKey(userID)

	var cached notification.Profile
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, ErrMiss) {
		s.logger.Warn("profile cache read failed", zap.String("user_id", userID), zap.Error(err))
	}

	profile, err := s.RecipientStore.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, profile, s.ttl); err != nil {
		s.logger.Warn("profile cache write failed", zap.String("user_id", userID), zap.Error(err))
	}
	return profile, nil
}

// InvalidateProfiles drops cached profiles after a token or preference
// change. It needs only the cache, not the backing store.
func InvalidateProfiles(ctx context.Context, cache CacheClient, userIDs ...string) error {
	for _, id := range userIDs {
		if err := cache.Del(ctx, cacheKey(id)); err != nil {
			return fmt.Errorf("failed to invalidate profile %s: %w", id, err)
		}
	}
	return nil
}

func cacheKey(userID string) string {
	return "mise:profile:" + userID
}
