package chathub_test

import (
	"context"
	"net"
	"sparkchat/backend/internal/chathub"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPresence(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	// two instances share the counter
	p1 := chathub.NewRedisPresence(rdb, "test", time.Hour)
	p2 := chathub.NewRedisPresence(rdb, "test", time.Hour)

	n, err := p1.Connect(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = p2.Connect(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, time.Hour, mr.TTL("test:presence:A"))

	n, err = p1.Disconnect(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = p2.Disconnect(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.False(t, mr.Exists("test:presence:A"))

	n, err = p2.Disconnect(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "never negative")
}

// afterDecrement runs fn once, right after the first command that decrements
// a counter returns.
type afterDecrement struct {
	once sync.Once
	fn   func()
}

func (h *afterDecrement) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *afterDecrement) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		switch cmd.Name() {
		case "decr", "eval", "evalsha":
			h.once.Do(h.fn)
		}
		return err
	}
}

func (h *afterDecrement) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisPresence_ConnectDuringDisconnect(t *testing.T) {
	mr := miniredis.RunT(t)
	leaving := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer leaving.Close()
	joining := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer joining.Close()
	ctx := context.Background()

	p1 := chathub.NewRedisPresence(leaving, "test", time.Hour)
	p2 := chathub.NewRedisPresence(joining, "test", time.Hour)

	n, err := p1.Connect(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	// the other instance opens a socket while this one closes the last
	leaving.AddHook(&afterDecrement{fn: func() {
		_, err := p2.Connect(ctx, "A")
		assert.NoError(t, err)
	}})
	_, err = p1.Disconnect(ctx, "A")
	require.NoError(t, err)

	v, err := mr.Get("test:presence:A")
	require.NoError(t, err, "the joining socket must still be counted")
	assert.Equal(t, "1", v)

	n, err = p2.Disconnect(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.False(t, mr.Exists("test:presence:A"))
}

func TestRedisPresence_RefreshKeepsLiveCounters(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()
	p := chathub.NewRedisPresence(rdb, "test", time.Hour)

	_, err := p.Connect(ctx, "A")
	require.NoError(t, err)
	_, err = p.Connect(ctx, "B")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		mr.FastForward(50 * time.Minute)
		require.NoError(t, p.Refresh(ctx, []string{"A"}))
	}
	assert.Equal(t, time.Hour, mr.TTL("test:presence:A"))
	assert.False(t, mr.Exists("test:presence:B"), "unrefreshed counters expire")

	n, err := p.Connect(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.NoError(t, p.Refresh(ctx, nil))
}

func TestLocalPresence(t *testing.T) {
	p := chathub.NewLocalPresence()
	ctx := context.Background()

	n, _ := p.Connect(ctx, "A")
	assert.Equal(t, int64(1), n)
	n, _ = p.Connect(ctx, "A")
	assert.Equal(t, int64(2), n)
	n, _ = p.Disconnect(ctx, "A")
	assert.Equal(t, int64(1), n)
	n, _ = p.Disconnect(ctx, "A")
	assert.Equal(t, int64(0), n)
	n, _ = p.Disconnect(ctx, "A")
	assert.Equal(t, int64(0), n)
}
