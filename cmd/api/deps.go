package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mise/internal/domain/notification"
	"mise/internal/infrastructure/cache"
	"mise/internal/infrastructure/postgres"
	"mise/internal/infrastructure/push"
	httphandlers "mise/internal/interfaces/http"
	"mise/internal/shared/auth"
	"mise/internal/shared/config"
	"mise/internal/shared/middleware"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB    *postgres.DB
	Redis *cache.RedisClient

	Store   notification.RecipientStore
	Service *notification.Service

	// Handlers
	WebhookHandler *httphandlers.WebhookHandler
	DigestHandler  *httphandlers.DigestHandler
	HealthHandler  *httphandlers.HealthHandler

	JWT           *auth.JWT
	DigestLimiter *middleware.RateLimiter
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	db, err := postgres.New(cfg.Database.ConnectionString(), postgres.DefaultPoolConfig())
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))

	deps := &Dependencies{DB: db}

	var store notification.RecipientStore = postgres.NewRecipientRepository(db)
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.Redis = rdb
		store = cache.NewCachedRecipientStore(store, rdb, cfg.Redis.TTL, logger)
		logger.Info("profile cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL))
	}
	deps.Store = store

	dispatcher, err := push.NewDispatcher(ctx, cfg.Push, cfg.Firebase, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}

	deps.Service = notification.NewService(store, dispatcher, logger, cfg.Push.AppTitle)
	deps.WebhookHandler = httphandlers.NewWebhookHandler(deps.Service, logger)
	deps.DigestHandler = httphandlers.NewDigestHandler(deps.Service, logger)
	deps.HealthHandler = httphandlers.NewHealthHandler(db)
	deps.JWT = auth.NewJWT(cfg.JWT.Secret)
	deps.DigestLimiter = middleware.NewRateLimiter(cfg.RateLimit.DigestPerMinute, cfg.RateLimit.DigestBurst)

	return deps, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

// limiterSweep evicts idle digest limiters until ctx is cancelled.
func (d *Dependencies) limiterSweep(ctx context.Context) {
	d.DigestLimiter.Run(ctx, time.Minute, 10*time.Minute)
}
