package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/shinestar-cleaners/internal/config"
	"github.com/wolfman30/shinestar-cleaners/internal/relay"
	"github.com/wolfman30/shinestar-cleaners/pkg/logging"
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

// BuildRelayFactory picks where chat answers wait for the contact form.
// A redis backend without a reachable client falls back to memory. Memory
// stores expire after RELAY_TTL, or the chat session TTL when that is unset.
func BuildRelayFactory(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) relay.Factory {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg != nil && cfg.UseRedisRelay() {
		if redisClient != nil {
			logger.Info("relay backend: redis", "ttl", cfg.RelayTTL)
			return relay.NewRedisFactory(redisClient, cfg.RelayTTL, logger)
		}
		logger.Warn("relay backend redis requested but unavailable; using memory")
	}
	ttl := memoryRelayTTL(cfg)
	logger.Info("relay backend: memory", "ttl", ttl)
	return relay.NewMemoryFactory(relay.WithMemoryTTL(ttl))
}

func memoryRelayTTL(cfg *appconfig.Config) time.Duration {
	if cfg == nil {
		return 0
	}
	if cfg.RelayTTL > 0 {
		return cfg.RelayTTL
	}
	return cfg.ChatSessionTTL
}

// RunRelayEviction drops expired memory relay stores every interval until ctx
// ends. Redis expires keys itself, so other factories return immediately.
func RunRelayEviction(ctx context.Context, relays relay.Factory, interval time.Duration) {
	if mf, ok := relays.(*relay.MemoryFactory); ok {
		mf.Run(ctx, interval)
	}
}
