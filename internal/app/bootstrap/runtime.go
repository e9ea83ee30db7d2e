package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/mobilephlebotomy/leadrouter/internal/config"
	"github.com/mobilephlebotomy/leadrouter/internal/replies"
	"github.com/mobilephlebotomy/leadrouter/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildReplayGuard prefers the shared Redis guard so every API replica sees
// the same MessageSids; without Redis the guard is process local.
func BuildReplayGuard(client *redis.Client, cfg *appconfig.Config, logger *logging.Logger) replies.ReplayGuard {
	if logger == nil {
		logger = logging.Default()
	}
	var ttl time.Duration
	if cfg != nil {
		ttl = cfg.ReplyDedupTTL
	}
	if client == nil {
		logger.Warn("redis not configured; reply replay guard is in-memory")
		return replies.NewMemoryReplayGuard(ttl)
	}
	return replies.NewRedisReplayGuard(client, "", ttl)
}

// ConnectPostgres opens the pgx pool and a database/sql handle sharing it.
// Both are nil when databaseURL is empty or the database is unreachable.
func ConnectPostgres(ctx context.Context, databaseURL string, logger *logging.Logger) (*pgxpool.Pool, *sql.DB) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		logger.Error("invalid DATABASE_URL", "error", err)
		return nil, nil
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil, nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("postgres not reachable", "error", err)
		pool.Close()
		return nil, nil
	}
	return pool, stdlib.OpenDBFromPool(pool)
}

// LoadDefaultLocation resolves the zone used for provider schedules that
// declare none, falling back to UTC.
func LoadDefaultLocation(name string, logger *logging.Logger) *time.Location {
	if logger == nil {
		logger = logging.Default()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("unknown DEFAULT_PROVIDER_TZ, using UTC", "tz", name, "error", err)
		return time.UTC
	}
	return loc
}
