package eventlog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLedger(t *testing.T, ttl time.Duration) (*Ledger, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	t.Cleanup(func() { rdb.Close() })

	l, err := New(Options{
		Redis:  rdb,
		Logger: zap.NewNop(),
		TTL:    ttl,
	})
	require.NoError(t, err)
	return l, mr
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{Logger: zap.NewNop()})
	assert.EqualError(t, err, "nil Redis is invalid")

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{"localhost:0"}})
	defer rdb.Close()
	_, err = New(Options{Redis: rdb})
	assert.EqualError(t, err, "nil Logger is invalid")

	l, err := New(Options{Redis: rdb, Logger: zap.NewNop()})
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, l.TTL)
}

func TestSeenAfterMark(t *testing.T) {
	l, mr := newTestLedger(t, time.Hour)
	ctx := context.Background()

	seen, err := l.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, l.Mark(ctx, "evt_1"))

	seen, err = l.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	assert.True(t, mr.Exists("billing:event:evt_1"))
	assert.Equal(t, time.Hour, mr.TTL("billing:event:evt_1"))

	seen, err = l.Seen(ctx, "evt_2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMarkExpires(t *testing.T) {
	l, mr := newTestLedger(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Mark(ctx, "evt_1"))
	mr.FastForward(time.Minute + time.Second)

	seen, err := l.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisUnavailable(t *testing.T) {
	l, mr := newTestLedger(t, time.Minute)
	mr.Close()

	_, err := l.Seen(context.Background(), "evt_1")
	assert.Error(t, err)
	assert.Error(t, l.Mark(context.Background(), "evt_1"))
}

func TestCanceledContext(t *testing.T) {
	l, _ := newTestLedger(t, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Seen(ctx, "evt_1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, l.Mark(ctx, "evt_1"), context.Canceled)
}
