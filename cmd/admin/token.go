package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mise/internal/shared/auth"
)

func issueTokenCmd() *cobra.Command {
	var (
		userID string
		email  string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Issue a bearer token for the digest API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseUserIDs(userID)
			if err != nil {
				return err
			}
			if len(ids) != 1 {
				return fmt.Errorf("exactly one --user-id is required")
			}

			cfg, _, err := bootstrap()
			if err != nil {
				return err
			}

			token, err := auth.NewJWT(cfg.JWT.Secret).WithTTL(ttl).Generate(ids[0], email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "Profile UUID the token identifies")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("user-id")

	return cmd
}
