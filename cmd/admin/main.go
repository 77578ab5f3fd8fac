// admin is the operator CLI for the mise push service.
//
// Usage:
//
//	admin digest --user-id=<uuid>[,<uuid>...]
//	admin digest --all --workers=8 --timeout=30m
//	admin install-triggers
//	admin issue-token --user-id=<uuid> --email=ops@example.com
//	admin cache-invalidate --user-id=<uuid>
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mise/internal/shared/config"
	"mise/internal/shared/logging"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "admin",
		Short: "Management commands for the mise push service",
		Long: `admin runs one-off operations against the push service's database,
cache and push provider, using the same configuration as the API.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(digestCmd())
	rootCmd.AddCommand(installTriggersCmd())
	rootCmd.AddCommand(issueTokenCmd())
	rootCmd.AddCommand(cacheInvalidateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and a console logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, "console")
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// parseUserIDs splits a comma-separated list and validates each UUID.
func parseUserIDs(s string) ([]string, error) {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q: %w", part, err)
		}
		ids = append(ids, id.String())
	}
	return ids, nil
}
