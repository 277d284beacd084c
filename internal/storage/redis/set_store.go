// Package redis provides the Redis-backed set store used for crawl dedup.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// SetStore implements crawler.SetStore with Redis sets.
type SetStore struct {
	client goredis.UniversalClient
}

var _ crawler.SetStore = (*SetStore)(nil)

// NewSetStore connects to Redis and verifies the connection.
func NewSetStore(ctx context.Context, cfg Config) (*SetStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return &SetStore{client: client}, nil
}

// NewSetStoreWithClient wraps an existing client. It is used by tests.
func NewSetStoreWithClient(client goredis.UniversalClient) *SetStore {
	return &SetStore{client: client}
}

// Add inserts member into the set at key.
func (s *SetStore) Add(ctx context.Context, key, member string) error {
	if err := s.client.SAdd(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("sadd %s: %w", key, err)
	}
	return nil
}

// Contains reports whether member is in the set at key.
func (s *SetStore) Contains(ctx context.Context, key, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("sismember %s: %w", key, err)
	}
	return ok, nil
}

// Delete drops the sets at keys.
func (s *SetStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("del %v: %w", keys, err)
	}
	return nil
}

// Close releases the client connections.
func (s *SetStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}
