package push

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mise/internal/domain/notification"
	"mise/internal/infrastructure/expo"
	"mise/internal/infrastructure/firebase"
	"mise/internal/shared/config"
)

// NewDispatcher builds the provider client selected by PUSH_PROVIDER.
func NewDispatcher(ctx context.Context, cfg config.PushConfig, fb config.FirebaseConfig, logger *zap.Logger) (notification.Dispatcher, error) {
	switch cfg.Provider {
	case config.ProviderFCM:
		client, err := firebase.NewClient(ctx, fb.CredentialsFile, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize firebase: %w", err)
		}
		logger.Info("push provider selected", zap.String("provider", config.ProviderFCM))
		return client, nil
	case config.ProviderExpo, "":
		logger.Info("push provider selected",
			zap.String("provider", config.ProviderExpo),
			zap.Int("max_batch", cfg.MaxBatch),
		)
		return expo.NewClient(expo.Config{
			Endpoint:    cfg.Endpoint,
			AccessToken: cfg.AccessToken,
			Timeout:     cfg.Timeout,
			MaxBatch:    cfg.MaxBatch,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown push provider %q", cfg.Provider)
	}
}
