package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/payment-relay/internal/infrastructure/config"
	pkgretry "github.com/cassiomorais/payment-relay/pkg/retry"
	"github.com/redis/go-redis/v9"
)

// NewClient creates a new Redis client, retrying the initial ping with
// backoff so the worker survives a slow Redis start.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	})

	retryCfg := pkgretry.Config{
		MaxAttempts:  uint(cfg.ConnectRetries),
		InitialDelay: cfg.ConnectRetryDelay,
		MaxDelay:     10 * time.Second,
	}
	if retryCfg.MaxAttempts == 0 {
		retryCfg.MaxAttempts = 5
	}
	if retryCfg.InitialDelay <= 0 {
		retryCfg.InitialDelay = 1 * time.Second
	}

	if err := pkgretry.Do(ctx, retryCfg, func() error {
		return client.Ping(ctx).Err()
	}); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %w", retryCfg.MaxAttempts, err)
	}

	return client, nil
}
