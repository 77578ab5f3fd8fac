package notification

import (
	"context"
	"sync"
	"time"
)

// MockRecipientStore implements RecipientStore for testing
type MockRecipientStore struct {
	GetProfileFunc                func(ctx context.Context, userID string) (*Profile, error)
	ListParticipantsFunc          func(ctx context.Context, conversationID, excludeUserID string) ([]Participant, error)
	GetProfilesWithTokensFunc     func(ctx context.Context, userIDs []string) ([]*Profile, error)
	CountUnreadFunc               func(ctx context.Context, userID string, since time.Time) (int, error)
	CountNewPostsFromFollowedFunc func(ctx context.Context, userID string, since time.Time) (int, error)
	ListDigestCandidatesFunc      func(ctx context.Context, since time.Time) ([]string, error)
}

func (m *MockRecipientStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, userID)
	}
	return nil, ErrProfileNotFound
}

func (m *MockRecipientStore) ListParticipants(ctx context.Context, conversationID, excludeUserID string) ([]Participant, error) {
	if m.ListParticipantsFunc != nil {
		return m.ListParticipantsFunc(ctx, conversationID, excludeUserID)
	}
	return nil, nil
}

func (m *MockRecipientStore) GetProfilesWithTokens(ctx context.Context, userIDs []string) ([]*Profile, error) {
	if m.GetProfilesWithTokensFunc != nil {
		return m.GetProfilesWithTokensFunc(ctx, userIDs)
	}
	return nil, nil
}

func (m *MockRecipientStore) CountUnread(ctx context.Context, userID string, since time.Time) (int, error) {
	if m.CountUnreadFunc != nil {
		return m.CountUnreadFunc(ctx, userID, since)
	}
	return 0, nil
}

func (m *MockRecipientStore) CountNewPostsFromFollowed(ctx context.Context, userID string, since time.Time) (int, error) {
	if m.CountNewPostsFromFollowedFunc != nil {
		return m.CountNewPostsFromFollowedFunc(ctx, userID, since)
	}
	return 0, nil
}

func (m *MockRecipientStore) ListDigestCandidates(ctx context.Context, since time.Time) ([]string, error) {
	if m.ListDigestCandidatesFunc != nil {
		return m.ListDigestCandidatesFunc(ctx, since)
	}
	return nil, nil
}

// recordingDispatcher records every Dispatch call and reports every token as sent
type recordingDispatcher struct {
	mu     sync.Mutex
	calls  []dispatchCall
	result func(tokens []string) DispatchResult
}

type dispatchCall struct {
	Tokens []string
	Msg    PushMessage
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, tokens []string, msg PushMessage) DispatchResult {
	d.mu.Lock()
	d.calls = append(d.calls, dispatchCall{Tokens: tokens, Msg: msg})
	d.mu.Unlock()
	if d.result != nil {
		return d.result(tokens)
	}
	return DispatchResult{Sent: len(tokens)}
}

func (d *recordingDispatcher) Calls() []dispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatchCall(nil), d.calls...)
}

func profileStore(profiles ...*Profile) func(ctx context.Context, userID string) (*Profile, error) {
	byID := make(map[string]*Profile, len(profiles))
	for _, p := range profiles {
		byID[p.UserID] = p
	}
	return func(ctx context.Context, userID string) (*Profile, error) {
		if p, ok := byID[userID]; ok {
			return p, nil
		}
		return nil, ErrProfileNotFound
	}
}
