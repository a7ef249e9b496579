package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/storefront-orders/internal/config"
)

// Invalidator drops cached read models after a write. The store stays the source of truth.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

type redisInvalidator struct {
	client redis.Cmdable
}

func NewRedisInvalidator(client redis.Cmdable) Invalidator {
	return &redisInvalidator{client: client}
}

func (r *redisInvalidator) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache: failed to delete keys %v: %w", keys, err)
	}

	log.Debug().Strs("keys", keys).Msg("cache: keys invalidated")

	return nil
}

// Noop is used when no cache is configured.
type Noop struct{}

func (Noop) Invalidate(context.Context, ...string) error { return nil }

// NewRedisClient connects and pings. Callers close the client.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: unable to ping redis at %s: %w", cfg.Addr, err)
	}

	log.Info().Str("addr", cfg.Addr).Msg("Successfully connected to redis")

	return client, nil
}
