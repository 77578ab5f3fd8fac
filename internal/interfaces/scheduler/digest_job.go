package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mise/internal/domain/notification"
)

type Digester interface {
	Digest(ctx context.Context, userID string) (notification.DigestOutcome, error)
}

// CandidateLister finds users who should receive a digest.
type CandidateLister interface {
	ListDigestCandidates(ctx context.Context, since time.Time) ([]string, error)
}

// DigestJob sends one user's daily digest.
type DigestJob struct {
	userID   string
	digester Digester
	logger   *zap.Logger
}

func NewDigestJob(userID string, digester Digester, logger *zap.Logger) *DigestJob {
	return &DigestJob{userID: userID, digester: digester, logger: logger}
}

// Execute treats a user without a push token as done; the token may have
// been cleared after the candidate list was built.
func (j *DigestJob) Execute(ctx context.Context) error {
	outcome, err := j.digester.Digest(ctx, j.userID)
	if err != nil {
		if errors.Is(err, notification.ErrNoPushToken) {
			j.logger.Debug("digest skipped, no push token", zap.String("user_id", j.userID))
			return nil
		}
		return fmt.Errorf("digest failed: %w", err)
	}

	if !outcome.Sent {
		j.logger.Debug("digest skipped", zap.String("user_id", j.userID), zap.String("reason", string(outcome.Reason)))
		return nil
	}
	if outcome.Result.Sent == 0 && outcome.Result.Failed > 0 {
		return fmt.Errorf("digest push rejected by provider")
	}
	return nil
}

func (j *DigestJob) UserID() string {
	return j.userID
}

func (j *DigestJob) Description() string {
	return "daily digest"
}

// DigestJobs returns a JobProvider listing one DigestJob per user with
// unread notifications inside the digest window.
func DigestJobs(candidates CandidateLister, digester Digester, logger *zap.Logger, now func() time.Time) JobProvider {
	logger = logger.Named("digest_job")
	return func(ctx context.Context) ([]Job, error) {
		userIDs, err := candidates.ListDigestCandidates(ctx, now().Add(-notification.DigestWindow))
		if err != nil {
			return nil, fmt.Errorf("failed to list digest candidates: %w", err)
		}

		jobs := make([]Job, 0, len(userIDs))
		for _, id := range userIDs {
			jobs = append(jobs, NewDigestJob(id, digester, logger))
		}
		return jobs, nil
	}
}
