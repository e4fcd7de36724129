package relay

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/shinestar-cleaners/pkg/logging"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, "", 0, logging.Discard())

	require.NoError(t, s.SetField(ctx, "email", "a@b.com"))
	require.NoError(t, s.SetField(ctx, "name", "Jo"))

	fields, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"email": "a@b.com", "name": "Jo"}, fields)

	raw, err := mr.Get(Key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":"a@b.com","name":"Jo"}`, raw)
}

func TestRedisStore_MissingKeyReadsEmpty(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewRedisStore(client, "contactFormData:nobody", 0, logging.Discard())

	fields, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestRedisStore_CorruptBlob(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	require.NoError(t, mr.Set(Key, "][garbage"))
	s := NewRedisStore(client, Key, 0, logging.Discard())

	fields, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, fields)

	require.NoError(t, s.SetField(ctx, "phone", "021"))
	fields, err = s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"phone": "021"}, fields)
}

func TestRedisStore_TTL(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, Key, time.Hour, logging.Discard())

	require.NoError(t, s.SetField(context.Background(), "name", "Jo"))
	assert.Equal(t, time.Hour, mr.TTL(Key))

	mr.FastForward(2 * time.Hour)
	fields, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestRedisStore_ReadErrorPropagates(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, Key, 0, logging.Discard())
	mr.Close()

	_, err := s.ReadAll(context.Background())
	assert.Error(t, err)
}

func TestRedisFactory_ScopesBySession(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	f := NewRedisFactory(client, 0, logging.Discard())

	require.NoError(t, f.For("s1").SetField(ctx, "name", "Ann"))
	assert.True(t, mr.Exists("contactFormData:s1"))
	assert.False(t, mr.Exists(Key))
}

func TestNewRedisStore_NilClient(t *testing.T) {
	assert.Nil(t, NewRedisStore(nil, Key, 0, nil))
}
