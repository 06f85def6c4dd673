package chathub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence is the liveness counter shared by all instances: the number of
// sockets a user has open anywhere.
type Presence interface {
	// Connect increments and returns the new count.
	Connect(ctx context.Context, userID string) (int64, error)
	// Disconnect decrements and returns the new count, never below zero.
	Disconnect(ctx context.Context, userID string) (int64, error)
	// Refresh marks the counters of users with live local sockets as still in use.
	Refresh(ctx context.Context, userIDs []string) error
}

// disconnectScript decrements and drops the key at zero in one step, so a
// connect from another instance can never land between the two.
var disconnectScript = redis.NewScript(`
local n = redis.call('DECR', KEYS[1])
if n <= 0 then
	redis.call('DEL', KEYS[1])
	return 0
end
return n
`)

// RedisPresence keeps one counter key per user. The TTL is set on connect and
// extended by Refresh while sockets stay open, so only counters left behind
// by a crashed instance expire.
type RedisPresence struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisPresence(rdb *redis.Client, prefix string, ttl time.Duration) *RedisPresence {
	return &RedisPresence{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (p *RedisPresence) key(userID string) string {
	return p.prefix + ":presence:" + userID
}

func (p *RedisPresence) Connect(ctx context.Context, userID string) (int64, error) {
	var incr *redis.IntCmd
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, p.key(userID))
		pipe.Expire(ctx, p.key(userID), p.ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("presence connect %s: %w", userID, err)
	}
	return incr.Val(), nil
}

func (p *RedisPresence) Disconnect(ctx context.Context, userID string) (int64, error) {
	n, err := disconnectScript.Run(ctx, p.rdb, []string{p.key(userID)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("presence disconnect %s: %w", userID, err)
	}
	return n, nil
}

func (p *RedisPresence) Refresh(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := p.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIDs {
			pipe.Expire(ctx, p.key(id), p.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("presence refresh: %w", err)
	}
	return nil
}

// LocalPresence counts in memory, for single-instance mode.
type LocalPresence struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewLocalPresence() *LocalPresence {
	return &LocalPresence{counts: make(map[string]int64)}
}

func (p *LocalPresence) Connect(_ context.Context, userID string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[userID]++
	return p.counts[userID], nil
}

func (p *LocalPresence) Disconnect(_ context.Context, userID string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.counts[userID] - 1
	if n <= 0 {
		delete(p.counts, userID)
		return 0, nil
	}
	p.counts[userID] = n
	return n, nil
}

// Refresh is a no-op: local counters live as long as the process.
func (p *LocalPresence) Refresh(context.Context, []string) error { return nil }
