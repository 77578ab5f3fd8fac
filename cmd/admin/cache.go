package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mise/internal/infrastructure/cache"
)

func cacheInvalidateCmd() *cobra.Command {
	var userIDs string

	cmd := &cobra.Command{
		Use:   "cache-invalidate",
		Short: "Drop cached profiles after a token or preference change",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseUserIDs(userIDs)
			if err != nil {
				return err
			}

			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if !cfg.Redis.Enabled {
				return fmt.Errorf("profile cache is disabled (REDIS_ENABLED=false)")
			}

			rdb, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				return err
			}
			defer rdb.Close()

			if err := cache.InvalidateProfiles(cmd.Context(), rdb, ids...); err != nil {
				return err
			}
			logger.Info("profile cache invalidated", zap.Strings("user_ids", ids))
			fmt.Fprintf(cmd.OutOrStdout(), "Invalidated %d profile(s)\n", len(ids))
			return nil
		},
	}

	cmd.Flags().StringVar(&userIDs, "user-id", "", "User ID(s) to invalidate (comma-separated)")
	cmd.MarkFlagRequired("user-id")

	return cmd
}
