package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	appconfig "github.com/wolfman30/shinestar-cleaners/internal/config"
	"github.com/wolfman30/shinestar-cleaners/internal/relay"
	"github.com/wolfman30/shinestar-cleaners/pkg/logging"
)

func TestBuildRedisClientEmptyAddrReturnsNil(t *testing.T) {
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, logging.New("error"), true); client != nil {
		t.Fatalf("expected nil client for empty address")
	}
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cfg := &appconfig.Config{RedisAddr: mr.Addr()}

	client := BuildRedisClient(context.Background(), cfg, logging.New("error"), true)
	if client == nil {
		t.Fatalf("expected client for reachable redis")
	}
	defer client.Close()

	mr.Close()
	if client := BuildRedisClient(context.Background(), cfg, logging.New("error"), true); client != nil {
		t.Fatalf("expected nil client when ping fails")
	}
}

func TestBuildRelayFactory(t *testing.T) {
	logger := logging.New("error")

	if _, ok := BuildRelayFactory(&appconfig.Config{RelayBackend: "memory"}, nil, logger).(*relay.MemoryFactory); !ok {
		t.Fatalf("expected memory factory")
	}
	if _, ok := BuildRelayFactory(&appconfig.Config{RelayBackend: "redis"}, nil, logger).(*relay.MemoryFactory); !ok {
		t.Fatalf("expected memory fallback when redis is unavailable")
	}

	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	mf, ok := BuildRelayFactory(&appconfig.Config{RelayBackend: "memory", ChatSessionTTL: time.Minute}, nil, logger).(*relay.MemoryFactory)
	if !ok {
		t.Fatalf("expected memory factory")
	}
	relay.WithMemoryClock(func() time.Time { return now })(mf)
	if err := mf.For("s").SetField(context.Background(), "name", "Jane"); err != nil {
		t.Fatalf("set field: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if removed := mf.Evict(); removed != 1 {
		t.Fatalf("expected session ttl to bound memory relay, evicted %d", removed)
	}

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger, false)
	defer client.Close()
	if _, ok := BuildRelayFactory(&appconfig.Config{RelayBackend: "redis"}, client, logger).(*relay.RedisFactory); !ok {
		t.Fatalf("expected redis factory")
	}
}
