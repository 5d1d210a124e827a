// Package bootstrap holds shared wiring used by the api and worker
// binaries.
package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/bookinglink/bookinglink/internal/availability"
	appconfig "github.com/bookinglink/bookinglink/internal/config"
	"github.com/bookinglink/bookinglink/pkg/logging"
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
		logger.Warn("redis not available, slot caching disabled", "error", err)
		return nil
	}
	return client
}

// BuildSlotCache returns the Redis-backed slot cache when Redis is
// available, nil otherwise.
func BuildSlotCache(redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) *availability.SlotCache {
	if redisClient == nil || cfg == nil {
		return nil
	}
	return availability.NewSlotCache(redisClient, cfg.SlotCacheTTL, logger)
}

// CORSOrigins splits the comma-separated allowlist from config.
func CORSOrigins(cfg *appconfig.Config) []string {
	if cfg == nil || strings.TrimSpace(cfg.CORSAllowedOrigins) == "" {
		return nil
	}
	var origins []string
	for _, o := range strings.Split(cfg.CORSAllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
