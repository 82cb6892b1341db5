// Package cache keeps recently resolved accounts out of the database on
// every request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modern-blog/internal/config"
	"github.com/modern-blog/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const accountKeyFormat = "account:%s"

// AccountCache stores account records by id. Get returns nil, nil on a miss.
type AccountCache interface {
	Get(ctx context.Context, id string) (*models.User, error)
	Set(ctx context.Context, user *models.User) error
	Invalidate(ctx context.Context, id string) error
	Close() error
}

// New connects to Redis when a URL is configured and falls back to a
// cache that stores nothing otherwise.
func New(ctx context.Context, cfg *config.RedisConfig, log zerolog.Logger) (AccountCache, error) {
	if cfg.URL == "" {
		log.Info().Msg("REDIS_URL not set, account cache disabled")
		return NewNop(), nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info().Str("addr", opts.Addr).Dur("ttl", cfg.CacheTTL).Msg("Account cache connected")
	return NewRedis(rdb, cfg.CacheTTL, log), nil
}

type redisCache struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// NewRedis wraps an existing client
func NewRedis(rdb *redis.Client, ttl time.Duration, log zerolog.Logger) AccountCache {
	return &redisCache{
		rdb: rdb,
		ttl: ttl,
		log: log.With().Str("component", "account_cache").Logger(),
	}
}

func accountKey(id string) string {
	return fmt.Sprintf(accountKeyFormat, id)
}

func (c *redisCache) Get(ctx context.Context, id string) (*models.User, error) {
	raw, err := c.rdb.Get(ctx, accountKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		// unreadable entry, drop it and treat as a miss
		c.log.Warn().Err(err).Str("account_id", id).Msg("Discarding corrupt cache entry")
		c.rdb.Del(ctx, accountKey(id))
		return nil, nil
	}
	return &user, nil
}

func (c *redisCache) Set(ctx context.Context, user *models.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, accountKey(user.ID), raw, c.ttl).Err()
}

func (c *redisCache) Invalidate(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, accountKey(id)).Err()
}

func (c *redisCache) Close() error {
	return c.rdb.Close()
}

type nopCache struct{}

// NewNop returns a cache that never holds anything
func NewNop() AccountCache { return nopCache{} }

func (nopCache) Get(ctx context.Context, id string) (*models.User, error) { return nil, nil }
func (nopCache) Set(ctx context.Context, user *models.User) error        { return nil }
func (nopCache) Invalidate(ctx context.Context, id string) error         { return nil }
func (nopCache) Close() error                                            { return nil }
