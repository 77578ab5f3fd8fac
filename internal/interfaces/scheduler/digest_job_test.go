package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mise/internal/domain/notification"
)

type MockDigester struct {
	DigestFunc func(ctx context.Context, userID string) (notification.DigestOutcome, error)
}

func (m *MockDigester) Digest(ctx context.Context, userID string) (notification.DigestOutcome, error) {
	if m.DigestFunc != nil {
		return m.DigestFunc(ctx, userID)
	}
	return notification.DigestOutcome{}, nil
}

type MockCandidateLister struct {
	ListDigestCandidatesFunc func(ctx context.Context, since time.Time) ([]string, error)
}

func (m *MockCandidateLister) ListDigestCandidates(ctx context.Context, since time.Time) ([]string, error) {
	if m.ListDigestCandidatesFunc != nil {
		return m.ListDigestCandidatesFunc(ctx, since)
	}
	return nil, nil
}

func TestDigestJob_Execute(t *testing.T) {
	tests := []struct {
		name    string
		outcome notification.DigestOutcome
		err     error
		wantErr bool
	}{
		{"sent", notification.DigestOutcome{Sent: true, Result: notification.DispatchResult{Sent: 1}}, nil, false},
		{"no unread", notification.DigestOutcome{Reason: notification.ReasonNoUnread}, nil, false},
		{"token cleared", notification.DigestOutcome{}, notification.ErrNoPushToken, false},
		{"provider rejected", notification.DigestOutcome{Sent: true, Result: notification.DispatchResult{Failed: 1}}, nil, true},
		{"store failure", notification.DigestOutcome{}, errors.New("db down"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			digester := &MockDigester{
				DigestFunc: func(ctx context.Context, userID string) (notification.DigestOutcome, error) {
					assert.Equal(t, "u1", userID)
					return tt.outcome, tt.err
				},
			}
			job := NewDigestJob("u1", digester, zap.NewNop())

			err := job.Execute(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, "u1", job.UserID())
		})
	}
}

func TestDigestJobs_UsesDigestWindow(t *testing.T) {
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	var gotSince time.Time
	lister := &MockCandidateLister{
		ListDigestCandidatesFunc: func(ctx context.Context, since time.Time) ([]string, error) {
			gotSince = since
			return []string{"u1", "u2"}, nil
		},
	}

	provider := DigestJobs(lister, &MockDigester{}, zap.NewNop(), func() time.Time { return now })
	jobs, err := provider(context.Background())

	require.NoError(t, err)
	assert.Equal(t, now.Add(-24*time.Hour), gotSince)
	require.Len(t, jobs, 2)
	assert.Equal(t, "u2", jobs[1].UserID())
}

func TestDigestJobs_ListError(t *testing.T) {
	lister := &MockCandidateLister{
		ListDigestCandidatesFunc: func(ctx context.Context, since time.Time) ([]string, error) {
			return nil, errors.New("timeout")
		},
	}

	_, err := DigestJobs(lister, &MockDigester{}, zap.NewNop(), time.Now)(context.Background())
	assert.Error(t, err)
}
