package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mise/internal/domain/notification"
	"mise/internal/infrastructure/postgres"
	"mise/internal/infrastructure/push"
)

type digestOptions struct {
	userIDs string
	all     bool
	workers int
	timeout time.Duration
}

func digestCmd() *cobra.Command {
	opts := digestOptions{}

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Send the daily digest now",
		Long: `Send the daily digest to specific users or to every digest candidate
(users with a push token and unread notifications in the last 24h).

Examples:
  admin digest --user-id=6f1c2a4e-0b8d-4d6a-9a57-3e2c1f0d9b11
  admin digest --all --workers=8 --timeout=1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.userIDs, "user-id", "", "User ID(s) to digest (comma-separated)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Digest every candidate user")
	cmd.Flags().IntVar(&opts.workers, "workers", 4, "Number of concurrent digests")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Minute, "Timeout for the whole run")
	cmd.MarkFlagsMutuallyExclusive("user-id", "all")
	cmd.MarkFlagsOneRequired("user-id", "all")

	return cmd
}

type digestLine struct {
	userID  string
	outcome notification.DigestOutcome
	err     error
}

func runDigest(cmd *cobra.Command, opts digestOptions) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	db, err := postgres.New(cfg.Database.ConnectionString(), postgres.DefaultPoolConfig())
	if err != nil {
		return err
	}
	defer db.Close()

	store := postgres.NewRecipientRepository(db)
	dispatcher, err := push.NewDispatcher(ctx, cfg.Push, cfg.Firebase, logger)
	if err != nil {
		return err
	}
	service := notification.NewService(store, dispatcher, logger, cfg.Push.AppTitle)

	var userIDs []string
	if opts.all {
		userIDs, err = store.ListDigestCandidates(ctx, time.Now().Add(-notification.DigestWindow))
		if err != nil {
			return fmt.Errorf("failed to list digest candidates: %w", err)
		}
		logger.Info("found digest candidates", zap.Int("count", len(userIDs)))
	} else {
		userIDs, err = parseUserIDs(opts.userIDs)
		if err != nil {
			return err
		}
	}
	if len(userIDs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No users to process")
		return nil
	}

	start := time.Now()
	lines := digestAll(ctx, service, userIDs, opts.workers)

	failed := 0
	for _, line := range lines {
		fmt.Fprintln(cmd.OutOrStdout(), formatDigestLine(line))
		if line.err != nil && !errors.Is(line.err, notification.ErrNoPushToken) {
			failed++
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nProcessed %d user(s) in %v\n", len(lines), time.Since(start).Round(time.Millisecond))

	if failed > 0 {
		return fmt.Errorf("%d digest(s) failed", failed)
	}
	return nil
}

type digester interface {
	Digest(ctx context.Context, userID string) (notification.DigestOutcome, error)
}

// digestAll runs at most workers digests at once. Per-user failures are
// collected, not propagated.
func digestAll(ctx context.Context, d digester, userIDs []string, workers int) []digestLine {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, workers))

	var mu sync.Mutex
	lines := make([]digestLine, 0, len(userIDs))

	for _, id := range userIDs {
		g.Go(func() error {
			outcome, err := d.Digest(ctx, id)
			mu.Lock()
			lines = append(lines, digestLine{userID: id, outcome: outcome, err: err})
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Slice(lines, func(i, j int) bool { return lines[i].userID < lines[j].userID })
	return lines
}

func formatDigestLine(l digestLine) string {
	switch {
	case errors.Is(l.err, notification.ErrNoPushToken):
		return fmt.Sprintf("%s  skipped: no push token", l.userID)
	case l.err != nil:
		return fmt.Sprintf("%s  error: %v", l.userID, l.err)
	case !l.outcome.Sent:
		return fmt.Sprintf("%s  skipped: %s", l.userID, l.outcome.Reason)
	default:
		return fmt.Sprintf("%s  sent: unread=%d posts=%d delivered=%d failed=%d",
			l.userID, l.outcome.UnreadCount, l.outcome.NewPostCount, l.outcome.Result.Sent, l.outcome.Result.Failed)
	}
}
