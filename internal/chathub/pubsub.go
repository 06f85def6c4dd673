package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sparkchat/backend/internal/config"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Envelope is one room emission travelling between instances. Data is the
// already encoded payload, so every instance writes identical bytes.
type Envelope struct {
	Origin string          `json:"origin"`
	Room   string          `json:"room"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Bus carries envelopes to every instance, the publishing one included.
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe returns a channel that is closed when ctx ends or the bus is
	// closed.
	Subscribe(ctx context.Context) (<-chan Envelope, error)
	Close() error
}

var ErrBusClosed = errors.New("fanout bus closed")

// RedisBus fans out over a single Redis pub/sub channel. Publishing and
// subscribing use separate clients, since a connection in subscribe mode
// cannot publish.
type RedisBus struct {
	pub     *redis.Client
	sub     *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisBus(pub, sub *redis.Client, prefix string, log *zap.Logger) *RedisBus {
	return &RedisBus{
		pub:     pub,
		sub:     sub,
		channel: prefix + ":" + config.FanoutChannel,
		log:     log.Named("redisbus"),
	}
}

func (b *RedisBus) Channel() string { return b.channel }

func (b *RedisBus) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := b.pub.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", b.channel, err)
	}
	return nil
}

// Subscribe waits for the subscription to be confirmed before returning, so
// nothing published afterwards is missed. go-redis re-subscribes on its own
// after a reconnect.
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan Envelope, error) {
	ps := b.sub.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", b.channel, err)
	}

	out := make(chan Envelope, config.FanoutBufferSize)
	go func() {
		defer close(out)
		defer ps.Close()

		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.log.Warn("dropping malformed envelope", zap.Error(err))
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close shuts both Redis clients down, which also ends open subscriptions.
func (b *RedisBus) Close() error {
	return multierr.Combine(b.pub.Close(), b.sub.Close())
}

// LocalBus delivers in-process. It serves single-instance deployments and lets
// tests run several gateways against one bus.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[*localSub]struct{}
	closed atomic.Bool
}

type localSub struct {
	ch   chan Envelope
	done chan struct{}
	once sync.Once
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[*localSub]struct{})}
}

// Publish hands env to every subscriber in order, waiting for buffer space.
func (b *LocalBus) Publish(ctx context.Context, env Envelope) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		select {
		case s.ch <- env:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context) (<-chan Envelope, error) {
	s := &localSub{
		ch:   make(chan Envelope, config.FanoutBufferSize),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed.Load() {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			b.unsubscribe(s)
		case <-s.done:
		}
	}()
	return s.ch, nil
}

// unsubscribe releases publishers blocked on s before taking the write lock,
// so closing s.ch cannot race a send.
func (b *LocalBus) unsubscribe(s *localSub) {
	s.once.Do(func() {
		close(s.done)
		b.mu.Lock()
		delete(b.subs, s)
		b.mu.Unlock()
		close(s.ch)
	})
}

func (b *LocalBus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.mu.RLock()
	subs := make([]*localSub, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		b.unsubscribe(s)
	}
	return nil
}
