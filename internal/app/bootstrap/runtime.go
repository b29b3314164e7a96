package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/leen-storefront/internal/booking"
	appconfig "github.com/wolfman30/leen-storefront/internal/config"
	"github.com/wolfman30/leen-storefront/internal/idempotency"
	"github.com/wolfman30/leen-storefront/pkg/logging"
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

// BuildSubmitLedger picks the submit idempotency ledger. Redis is shared by
// every replica; without it each process remembers its own submissions. The
// memory ledger is also returned so the caller can sweep it.
func BuildSubmitLedger(redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) (booking.Ledger, *idempotency.MemoryLedger) {
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient != nil {
		logger.Info("submit ledger backed by redis", "ttl", cfg.SubmitLedgerTTL)
		return idempotency.NewRedisLedger(redisClient, cfg.SubmitLedgerTTL), nil
	}
	logger.Warn("submit ledger kept in memory; duplicate protection is per process")
	mem := idempotency.NewMemoryLedger(cfg.SubmitLedgerTTL)
	return mem, mem
}
