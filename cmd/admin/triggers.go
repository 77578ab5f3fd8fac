package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mise/internal/infrastructure/postgres"
	"mise/internal/infrastructure/postgres/listener"
)

func installTriggersCmd() *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "install-triggers",
		Short: "Install the row-insert triggers that feed the event listener",
		Long: `Create (or replace) the trigger functions that publish new notifications
and messages on the notification_created and message_created channels.

The statements are idempotent. Use --print to review them first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if printOnly {
				fmt.Fprint(cmd.OutOrStdout(), listener.TriggersSQL)
				return nil
			}

			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := postgres.New(cfg.Database.ConnectionString(), postgres.DefaultPoolConfig())
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if _, err := db.ExecContext(ctx, listener.TriggersSQL); err != nil {
				return fmt.Errorf("failed to install triggers: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Triggers installed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&printOnly, "print", false, "Print the SQL instead of executing it")
	return cmd
}
