// Package gateway terminates the chat socket protocol. It authenticates
// sockets, turns inbound events into messaging calls and emits the results to
// rooms through the fan-out hub.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sparkchat/backend/internal/apperr"
	"sparkchat/backend/internal/auth"
	"sparkchat/backend/internal/chathub"
	"sparkchat/backend/internal/config"
	"sparkchat/backend/internal/messaging"
	"sparkchat/backend/internal/metrics"
	"sparkchat/backend/internal/models"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Messenger is the part of messaging.Service the gateway drives.
type Messenger interface {
	CreateConversation(ctx context.Context, participantIDs []string) (*models.Conversation, error)
	GetConversation(ctx context.Context, conversationID uint) (*models.Conversation, error)
	SendMessage(ctx context.Context, connectionID uint, senderID, content string, contentType models.ContentType) (*models.Message, error)
	CreateMessage(ctx context.Context, conversationID uint, senderID string, in messaging.CreateMessageInput) (*models.Message, error)
	MarkMessagesAsSeen(ctx context.Context, connectionID uint, userID string) (int64, error)
	AddReaction(ctx context.Context, userID string, in messaging.AddReactionInput) (*models.Message, error)
	RemoveReaction(ctx context.Context, userID string, messageID uint, t models.ReactionType) (*models.Message, error)
	UpdateMessageStatus(ctx context.Context, messageID uint, status models.MessageStatus) (*models.Message, error)
	MarkMessageAsRead(ctx context.Context, messageID uint) (*models.Message, error)
	DeleteMessage(ctx context.Context, messageID uint, userID string) (*models.Message, error)
	AuthorizeMessage(ctx context.Context, messageID uint, userID string) (*models.Message, error)
}

// Oracle answers blocking questions and records online state. Both belong to
// the users side of the system.
type Oracle interface {
	IsBlocked(ctx context.Context, a, b string) (bool, error)
	SetUserOnline(ctx context.Context, id string, online bool) error
}

type Options struct {
	EventsPerSecond float64
	EventsBurst     int
	MaxInFlight     int
	CacheSize       int
	// PresenceRefresh is how often the counters of attached users are kept alive.
	PresenceRefresh time.Duration
}

func (o Options) withDefaults() Options {
	if o.EventsPerSecond <= 0 {
		o.EventsPerSecond = 20
	}
	if o.EventsBurst <= 0 {
		o.EventsBurst = 40
	}
	if o.MaxInFlight <= 0 {
		o.MaxInFlight = config.MaxInFlight
	}
	if o.CacheSize <= 0 {
		o.CacheSize = config.ParticipantCacheSz
	}
	if o.PresenceRefresh <= 0 {
		o.PresenceRefresh = config.PresenceRefresh
	}
	return o
}

// session is the per-socket state kept next to the registry entry.
type session struct {
	identity auth.Identity
	limiter  *rate.Limiter
	slots    chan struct{}
	// counted is set once the liveness counter includes this socket.
	counted  bool
}

type Gateway struct {
	hub       *chathub.ManagerService
	presence  chathub.Presence
	messenger Messenger
	oracle    Oracle
	resolver  auth.Resolver
	validate  *validator.Validate
	log       *zap.Logger
	metrics   *metrics.Metrics
	opts      Options

	participants *lru.Cache[uint, []string]
	roomLocks    *keyedMutex

	mu       sync.Mutex
	sessions map[string]*session

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

func New(
	hub *chathub.ManagerService,
	presence chathub.Presence,
	messenger Messenger,
	oracle Oracle,
	resolver auth.Resolver,
	log *zap.Logger,
	m *metrics.Metrics,
	opts Options,
) (*Gateway, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts = opts.withDefaults()

	cache, err := lru.New[uint, []string](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("participant cache: %w", err)
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		hub:          hub,
		presence:     presence,
		messenger:    messenger,
		oracle:       oracle,
		resolver:     resolver,
		validate:     validate,
		log:          log.Named("gateway"),
		metrics:      m,
		opts:         opts,
		participants: cache,
		roomLocks:    newKeyedMutex(),
		sessions:     make(map[string]*session),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start subscribes the hub to the fan-out bus and keeps the liveness counters
// of attached users from expiring.
func (g *Gateway) Start() (<-chan struct{}, error) {
	done, err := g.hub.Start(g.ctx)
	if err != nil {
		return nil, err
	}
	go g.refreshPresence()
	return done, nil
}

func (g *Gateway) refreshPresence() {
	ticker := time.NewTicker(g.opts.PresenceRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-g.ctx.Done():
			return
		case <-ticker.C:
			users := g.countedUsers()
			ctx, cancel := context.WithTimeout(g.ctx, config.WriteWait)
			if err := g.presence.Refresh(ctx, users); err != nil {
				g.log.Warn("presence refresh failed", zap.Int("users", len(users)), zap.Error(err))
			}
			cancel()
		}
	}
}

// countedUsers lists each user with at least one counted socket here.
func (g *Gateway) countedUsers() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	seen := make(map[string]struct{}, len(g.sessions))
	users := make([]string, 0, len(g.sessions))
	for _, s := range g.sessions {
		if !s.counted {
			continue
		}
		if _, ok := seen[s.identity.ID]; ok {
			continue
		}
		seen[s.identity.ID] = struct{}{}
		users = append(users, s.identity.ID)
	}
	return users
}

func (g *Gateway) Registry() *chathub.Registry { return g.hub.Registry }

// Authenticate resolves a handshake credential. It runs before the socket is
// upgraded, so a failure never reaches the Authenticated state.
func (g *Gateway) Authenticate(ctx context.Context, token string) (auth.Identity, error) {
	return g.resolver.Resolve(ctx, token)
}

// Attach registers an authenticated socket: personal room, liveness counter,
// online flag and presence broadcast for the user's first socket. A socket the
// counter could not include stays usable but never moves the online flag.
func (g *Gateway) Attach(ctx context.Context, c chathub.Client, id auth.Identity) {
	s := &session{
		identity: id,
		limiter:  rate.NewLimiter(rate.Limit(g.opts.EventsPerSecond), g.opts.EventsBurst),
		slots:    make(chan struct{}, g.opts.MaxInFlight),
	}
	g.mu.Lock()
	g.sessions[c.ID()] = s
	g.mu.Unlock()

	g.hub.Registry.Register(c)
	g.hub.Registry.Join(c, models.UserRoom(id.ID))
	g.metrics.SocketAttached()

	n, err := g.presence.Connect(ctx, id.ID)
	if err != nil {
		g.log.Warn("presence connect failed", zap.String("user_id", id.ID), zap.Error(err))
		return
	}
	g.mu.Lock()
	live := g.sessions[c.ID()] == s
	s.counted = live
	g.mu.Unlock()
	if !live {
		// detached while connecting
		if _, err := g.presence.Disconnect(ctx, id.ID); err != nil {
			g.log.Warn("presence disconnect failed", zap.String("user_id", id.ID), zap.Error(err))
		}
		return
	}
	g.log.Debug("socket attached",
		zap.String("user_id", id.ID), zap.String("socket_id", c.ID()), zap.Int64("sockets", n))
	if n == 1 {
		g.setOnline(ctx, id.ID, true)
	}
}

// Detach releases every membership of c at once, without waiting for its
// in-flight handlers. The user goes offline when no socket remains anywhere.
func (g *Gateway) Detach(c chathub.Client) {
	if _, ok := g.hub.Registry.Unregister(c); !ok {
		return
	}
	g.mu.Lock()
	s, ok := g.sessions[c.ID()]
	delete(g.sessions, c.ID())
	counted := ok && s.counted
	g.mu.Unlock()
	g.metrics.SocketDetached()
	if !counted {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.WriteWait)
	defer cancel()
	n, err := g.presence.Disconnect(ctx, c.UserID())
	if err != nil {
		g.log.Warn("presence disconnect failed", zap.String("user_id", c.UserID()), zap.Error(err))
		return
	}
	if n == 0 {
		g.setOnline(ctx, c.UserID(), false)
	}
}

func (g *Gateway) setOnline(ctx context.Context, userID string, online bool) {
	if err := g.oracle.SetUserOnline(ctx, userID, online); err != nil {
		g.log.Warn("set online failed", zap.String("user_id", userID), zap.Bool("online", online), zap.Error(err))
	}
	g.emit(ctx, "", EmitPresence, models.Presence{UserID: userID, IsOnline: online})
}

// HandleFrame decodes one inbound frame and runs its handler on its own
// goroutine. When the socket already has MaxInFlight handlers running it
// waits for a slot, which pauses reading from that socket only.
func (g *Gateway) HandleFrame(c chathub.Client, raw []byte) {
	var frame models.InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		g.ack(c, frame, nil, fmt.Errorf("malformed frame: %w", apperr.ErrInvalid))
		return
	}

	g.mu.Lock()
	s, ok := g.sessions[c.ID()]
	g.mu.Unlock()
	if !ok {
		return
	}

	if !s.limiter.Allow() {
		g.ack(c, frame, nil, fmt.Errorf("too many events: %w", apperr.ErrRateLimited))
		return
	}

	select {
	case s.slots <- struct{}{}:
	case <-g.ctx.Done():
		return
	}
	g.inflight.Add(1)
	go func() {
		defer g.inflight.Done()
		defer func() { <-s.slots }()
		g.dispatch(c, s.identity, frame)
	}()
}

// dispatch runs one handler and always answers with an ack. A panic becomes
// an INTERNAL ack.
func (g *Gateway) dispatch(c chathub.Client, id auth.Identity, frame models.InboundFrame) {
	var (
		data any
		err  error
	)
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("handler panic",
				zap.String("event", frame.Event),
				zap.String("user_id", id.ID),
				zap.String("socket_id", c.ID()),
				zap.Any("panic", r),
				zap.Stack("stack"))
			data, err = nil, fmt.Errorf("panic in %s: %v", frame.Event, r)
		}
		g.ack(c, frame, data, err)
	}()

	data, err = g.route(g.ctx, c, id, EventName(frame.Event), frame.Data)
}

func (g *Gateway) route(ctx context.Context, c chathub.Client, id auth.Identity, name EventName, raw json.RawMessage) (any, error) {
	switch name {
	case EventJoinConversation:
		return g.joinConversation(c, raw)
	case EventLeaveConversation:
		return g.leaveConversation(c, raw)
	case EventSendMessage:
		return g.sendMessage(ctx, id, raw)
	case EventActivity:
		return g.activity(ctx, id, raw)
	case EventMarkSeen:
		return g.markSeen(ctx, id, raw)
	case EventCreateConversation:
		return g.createConversation(ctx, id, raw)
	case EventConversationSendMessage:
		return g.conversationSendMessage(ctx, id, raw)
	case EventConversationJoin:
		return g.conversationJoin(ctx, c, id, raw)
	case EventConversationLeave:
		return g.conversationLeave(c, raw)
	case EventReactionAdd:
		return g.addReaction(ctx, id, raw)
	case EventReactionRemove:
		return g.removeReaction(ctx, id, raw)
	case EventMessageStatus:
		return g.updateStatus(ctx, id, raw)
	case EventMessageRead:
		return g.markRead(ctx, id, raw)
	case EventMessageDelete:
		return g.deleteMessage(ctx, id, raw)
	default:
		return nil, fmt.Errorf("unknown event %q: %w", name, apperr.ErrInvalid)
	}
}

func (g *Gateway) ack(c chathub.Client, frame models.InboundFrame, data any, err error) {
	result := "OK"
	ack := models.Ack{Success: err == nil, Data: data}
	if err != nil {
		result = apperr.Code(err)
		ack.Code = result
		ack.Error = apperr.Public(err)
		ack.Data = nil
		if result == apperr.CodeInternal {
			g.log.Error("handler failed",
				zap.String("event", frame.Event), zap.String("user_id", c.UserID()), zap.Error(err))
		} else {
			g.log.Debug("handler rejected",
				zap.String("event", frame.Event), zap.String("user_id", c.UserID()), zap.Error(err))
		}
	}
	g.metrics.Event(frame.Event, result)

	out, mErr := json.Marshal(models.OutboundFrame{Event: EmitAck, ID: frame.ID, Data: ack})
	if mErr != nil {
		g.log.Error("encode ack", zap.String("event", frame.Event), zap.Error(mErr))
		return
	}
	c.Send(out)
}

func (g *Gateway) emit(ctx context.Context, room, event string, data any) {
	if err := g.hub.Emit(ctx, room, event, data); err != nil {
		g.log.Error("emit failed", zap.String("room", room), zap.String("event", event), zap.Error(err))
	}
}

// Shutdown stops accepting work, closes every local socket and waits for
// in-flight handlers until ctx expires.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.cancel()
	for _, c := range g.hub.Registry.Clients() {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		g.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("gateway shutdown: %w", ctx.Err())
	case <-time.After(config.WriteWait):
		return fmt.Errorf("gateway shutdown: handlers still running after %s", config.WriteWait)
	}
}
