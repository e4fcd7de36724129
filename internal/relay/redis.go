package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/shinestar-cleaners/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const maxMergeAttempts = 5

// RedisStore keeps the serialized mapping in a single Redis string.
type RedisStore struct {
	redis  *redis.Client
	key    string
	ttl    time.Duration
	tracer trace.Tracer
	logger *logging.Logger
}

// NewRedisStore binds a relay to key. A zero ttl keeps the blob forever.
func NewRedisStore(client *redis.Client, key string, ttl time.Duration, logger *logging.Logger) *RedisStore {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if key == "" {
		key = Key
	}
	return &RedisStore{
		redis:  client,
		key:    key,
		ttl:    ttl,
		tracer: otel.Tracer("shinestar.internal.relay"),
		logger: logger,
	}
}

// SetField merges name=value under an optimistic WATCH/MULTI transaction so
// concurrent writers never drop each other's fields.
func (s *RedisStore) SetField(ctx context.Context, name, value string) error {
	if strings.TrimSpace(name) == "" {
		return ErrFieldRequired
	}
	ctx, span := s.tracer.Start(ctx, "relay.set_field")
	defer span.End()

	txf := func(tx *redis.Tx) error {
		blob, err := tx.Get(ctx, s.key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		next, err := merge(blob, name, value)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, next, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxMergeAttempts; attempt++ {
		err := s.redis.Watch(ctx, txf, s.key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		span.RecordError(err)
		return fmt.Errorf("relay: set field %s: %w", name, err)
	}
	span.RecordError(redis.TxFailedErr)
	return fmt.Errorf("relay: set field %s: %w", name, redis.TxFailedErr)
}

// ReadAll returns the stored mapping. An unreadable blob is reported as empty.
func (s *RedisStore) ReadAll(ctx context.Context) (map[string]string, error) {
	ctx, span := s.tracer.Start(ctx, "relay.read_all")
	defer span.End()

	blob, err := s.redis.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return map[string]string{}, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("relay: read %s: %w", s.key, err)
	}
	fields, ok := decode(blob)
	if !ok {
		s.logger.Warn("relay: discarding unreadable form data", "key", s.key)
	}
	return fields, nil
}

// RedisFactory builds session-scoped Redis relays sharing one client.
type RedisFactory struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewRedisFactory creates a factory over client.
func NewRedisFactory(client *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisFactory {
	return &RedisFactory{client: client, ttl: ttl, logger: logger}
}

// For returns the relay stored under ScopedKey(session).
func (f *RedisFactory) For(session string) Store {
	return NewRedisStore(f.client, ScopedKey(session), f.ttl, f.logger)
}
