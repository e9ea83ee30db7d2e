package replies

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// ReplayGuard remembers delivery ids so upstream retries of one delivery
// are applied once. Distinct deliveries are never suppressed.
type ReplayGuard interface {
	// Claim reports whether id is seen for the first time.
	Claim(ctx context.Context, id string) (bool, error)
	// Release forgets id so a retry can be processed again.
	Release(ctx context.Context, id string) error
}

// RedisReplayGuard stores delivery ids with SETNX and a TTL.
type RedisReplayGuard struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisReplayGuard(client redis.Cmdable, prefix string, ttl time.Duration) *RedisReplayGuard {
	if client == nil {
		panic("replies: redis client required")
	}
	if prefix == "" {
		prefix = "leadrouter:replies:seen:"
	}
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &RedisReplayGuard{client: client, prefix: prefix, ttl: ttl}
}

func (g *RedisReplayGuard) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.prefix+id, time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("replies: replay guard claim: %w", err)
	}
	return ok, nil
}

func (g *RedisReplayGuard) Release(ctx context.Context, id string) error {
	if err := g.client.Del(ctx, g.prefix+id).Err(); err != nil {
		return fmt.Errorf("replies: replay guard release: %w", err)
	}
	return nil
}

// MemoryReplayGuard is a process-local guard for single instance deployments.
type MemoryReplayGuard struct {
	seen *cache.Cache
}

func NewMemoryReplayGuard(ttl time.Duration) *MemoryReplayGuard {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &MemoryReplayGuard{seen: cache.New(ttl, ttl/4)}
}

func (g *MemoryReplayGuard) Claim(_ context.Context, id string) (bool, error) {
	return g.seen.Add(id, struct{}{}, cache.DefaultExpiration) == nil, nil
}

func (g *MemoryReplayGuard) Release(_ context.Context, id string) error {
	g.seen.Delete(id)
	return nil
}
