package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mise/internal/domain/notification"
	"mise/internal/infrastructure/cache"
)

// --- Mocks ---
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, dest any) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

func (m *MockCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *MockCache) Del(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type MockStore struct {
	mock.Mock
	notification.RecipientStore
}

func (m *MockStore) GetProfile(ctx context.Context, userID string) (*notification.Profile, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*notification.Profile)
	return p, args.Error(1)
}

func (m *MockStore) CountUnread(ctx context.Context, userID string, since time.Time) (int, error) {
	args := m.Called(ctx, userID, since)
	return args.Int(0), args.Error(1)
}

func TestCachedRecipientStore_Hit(t *testing.T) {
	ctx := context.Background()
	mockCache := new(MockCache)
	mockDB := new(MockStore)
	store := cache.NewCachedRecipientStore(mockDB, mockCache, time.Minute, zap.NewNop())

	mockCache.On("Get", ctx, "mise:profile:u1", mock.AnythingOfType("*notification.Profile")).
		Run(func(args mock.Arguments) {
			dest := args.Get(2).(*notification.Profile)
			*dest = notification.Profile{UserID: "u1", PushToken: "tok"}
		}).
		Return(nil)

	p, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "tok", p.PushToken)

	mockDB.AssertNotCalled(t, "GetProfile", mock.Anything, mock.Anything)
}

func TestCachedRecipientStore_MissPopulates(t *testing.T) {
	ctx := context.Background()
	mockCache := new(MockCache)
	mockDB := new(MockStore)
	store := cache.NewCachedRecipientStore(mockDB, mockCache, time.Minute, zap.NewNop())

	fresh := &notification.Profile{UserID: "u1", DisplayName: "Ana"}
	mockCache.On("Get", ctx, "mise:profile:u1", mock.Anything).Return(cache.ErrMiss)
	mockDB.On("GetProfile", ctx, "u1").Return(fresh, nil)
	mockCache.On("Set", ctx, "mise:profile:u1", fresh, time.Minute).Return(nil)

	p, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.DisplayName)

	mockCache.AssertExpectations(t)
	mockDB.AssertExpectations(t)
}

func TestCachedRecipientStore_CacheDownFallsBack(t *testing.T) {
	ctx := context.Background()
	mockCache := new(MockCache)
	mockDB := new(MockStore)
	store := cache.NewCachedRecipientStore(mockDB, mockCache, time.Minute, zap.NewNop())

	fresh := &notification.Profile{UserID: "u1"}
	mockCache.On("Get", ctx, "mise:profile:u1", mock.Anything).Return(errors.New("connection refused"))
	mockDB.On("GetProfile", ctx, "u1").Return(fresh, nil)
	mockCache.On("Set", ctx, "mise:profile:u1", fresh, time.Minute).Return(errors.New("connection refused"))

	p, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Same(t, fresh, p)
}

func TestCachedRecipientStore_NotFoundNotCached(t *testing.T) {
	ctx := context.Background()
	mockCache := new(MockCache)
	mockDB := new(MockStore)
	store := cache.NewCachedRecipientStore(mockDB, mockCache, time.Minute, zap.NewNop())

	mockCache.On("Get", ctx, "mise:profile:ghost", mock.Anything).Return(cache.ErrMiss)
	mockDB.On("GetProfile", ctx, "ghost").Return(nil, notification.ErrProfileNotFound)

	_, err := store.GetProfile(ctx, "ghost")
	assert.ErrorIs(t, err, notification.ErrProfileNotFound)
	mockCache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCachedRecipientStore_CountsBypassCache(t *testing.T) {
	ctx := context.Background()
	mockCache := new(MockCache)
	mockDB := new(MockStore)
	store := cache.NewCachedRecipientStore(mockDB, mockCache, time.Minute, zap.NewNop())

	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mockDB.On("CountUnread", ctx, "u1", since).Return(4, nil)

	n, err := store.CountUnread(ctx, "u1", since)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	mockCache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestInvalidateProfiles(t *testing.T) {
	ctx := context.Background()
	mockCache := new(MockCache)

	mockCache.On("Del", ctx, "mise:profile:u1").Return(nil)
	mockCache.On("Del", ctx, "mise:profile:u2").Return(nil)

	require.NoError(t, cache.InvalidateProfiles(ctx, mockCache, "u1", "u2"))
	mockCache.AssertExpectations(t)
}

func TestInvalidateProfiles_StopsOnError(t *testing.T) {
	ctx := context.Background()
	mockCache := new(MockCache)

	mockCache.On("Del", ctx, "mise:profile:u1").Return(nil)
	mockCache.On("Del", ctx, "mise:profile:u2").Return(errors.New("readonly replica"))

	err := cache.InvalidateProfiles(ctx, mockCache, "u1", "u2", "u3")
	assert.Error(t, err)
	mockCache.AssertNotCalled(t, "Del", ctx, "mise:profile:u3")
}
