package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSet_OverflowEvictsOldestByInsertionOrder(t *testing.T) {
	s := NewLocalSet(3)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "1", []byte("1"), time.Hour))
	require.NoError(t, s.Add(ctx, "2", []byte("2"), time.Hour))
	require.NoError(t, s.Add(ctx, "3", []byte("3"), time.Hour))
	require.NoError(t, s.Add(ctx, "4", []byte("4"), time.Hour))

	got1, _ := s.Get(ctx, "1")
	assert.Nil(t, got1)

	got2, _ := s.Get(ctx, "2")
	assert.Equal(t, []byte("2"), got2)

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("2"), []byte("3"), []byte("4")}, all)
}

func TestLocalSet_DuplicateKeyRefreshesTTL(t *testing.T) {
	s := NewLocalSet(10)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "k", []byte("v1"), -time.Second)) // would already be expired
	require.NoError(t, s.Add(ctx, "k", []byte("v2"), time.Hour))    // refresh extends TTL

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
	assert.Equal(t, 1, s.Len())
}

func TestLocalSet_ExpiredEntryIsMiss(t *testing.T) {
	s := NewLocalSet(10)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "k", []byte("v"), -time.Second))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func newTestRedisSet(t *testing.T) *RedisSet {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisSet(client, "test-endpoint")
}

func TestRedisSet_AddGetGetAll(t *testing.T) {
	s := newTestRedisSet(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "btcusd", []byte(`{"base":"BTC"}`), time.Hour))
	require.NoError(t, s.Add(ctx, "ethusd", []byte(`{"base":"ETH"}`), time.Hour))

	got, err := s.Get(ctx, "btcusd")
	require.NoError(t, err)
	assert.JSONEq(t, `{"base":"BTC"}`, string(got))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRedisSet_RejectsKeyContainingDelimiter(t *testing.T) {
	s := newTestRedisSet(t)
	err := s.Add(context.Background(), "bad"+Delimiter+"key", []byte("v"), time.Hour)
	assert.Error(t, err)
}

func TestRedisSet_GetAllPrunesExpiredMembers(t *testing.T) {
	s := newTestRedisSet(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "stale", []byte("v"), -time.Second))
	require.NoError(t, s.Add(ctx, "fresh", []byte("v"), time.Hour))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
