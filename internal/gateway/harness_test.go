package gateway_test

import (
	"context"
	"encoding/json"
	"sparkchat/backend/internal/auth"
	"sparkchat/backend/internal/chathub"
	"sparkchat/backend/internal/gateway"
	"sparkchat/backend/internal/messaging"
	"sparkchat/backend/internal/models"
	"sparkchat/backend/internal/storage/storagetest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

var ctx = context.Background()

// testClient records every frame it is sent.
type testClient struct {
	id     string
	userID string

	mu     sync.Mutex
	frames []frame
	closed bool
}

type frame struct {
	Event string          `json:"event"`
	ID    string          `json:"id"`
	Room  string          `json:"room"`
	Data  json.RawMessage `json:"data"`
}

type ack struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

var socketSeq atomic.Int64

func newTestClient(userID string) *testClient {
	return &testClient{
		id:     "sock-" + strconv.FormatInt(socketSeq.Add(1), 10),
		userID: userID,
	}
}

func (c *testClient) ID() string     { return c.id }
func (c *testClient) UserID() string { return c.userID }
func (c *testClient) Run()           {}

func (c *testClient) Send(raw []byte) bool {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.frames = append(c.frames, f)
	return true
}

func (c *testClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *testClient) find(match func(frame) bool) (frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.frames {
		if match(f) {
			return f, true
		}
	}
	return frame{}, false
}

func (c *testClient) count(match func(frame) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, f := range c.frames {
		if match(f) {
			n++
		}
	}
	return n
}

func isEvent(event string) func(frame) bool {
	return func(f frame) bool { return f.Event == event }
}

// waitEvent waits for the first frame named event.
func waitEvent(t *testing.T, c *testClient, event string) frame {
	t.Helper()
	var got frame
	require.Eventually(t, func() bool {
		var ok bool
		got, ok = c.find(isEvent(event))
		return ok
	}, waitFor, tick, "%s never received %s", c.userID, event)
	return got
}

func assertNoEvent(t *testing.T, c *testClient, event string) {
	t.Helper()
	require.Never(t, func() bool {
		_, ok := c.find(isEvent(event))
		return ok
	}, 100*time.Millisecond, tick, "%s unexpectedly received %s", c.userID, event)
}

// node is one gateway instance sharing the cluster's bus, presence and store.
type node struct {
	gw *gateway.Gateway
}

type cluster struct {
	store    *storagetest.Store
	bus      *chathub.LocalBus
	presence chathub.Presence
	nodes    []node
	frameSeq atomic.Int64
}

const secret = "gateway-test-secret"

func newCluster(t *testing.T, instances int, opts gateway.Options) *cluster {
	t.Helper()
	return newClusterWithPresence(t, instances, opts, chathub.NewLocalPresence())
}

func newClusterWithPresence(t *testing.T, instances int, opts gateway.Options, presence chathub.Presence) *cluster {
	t.Helper()
	cl := &cluster{
		store:    storagetest.New(),
		bus:      chathub.NewLocalBus(),
		presence: presence,
	}
	for _, u := range []string{"alice", "bob", "carol", "mallory", "watcher"} {
		cl.store.AddUser(u, u)
	}
	for i := 0; i < instances; i++ {
		cl.nodes = append(cl.nodes, node{gw: cl.newGateway(t, messaging.NewService(cl.store, nil), opts)})
	}
	t.Cleanup(func() { _ = cl.bus.Close() })
	return cl
}

func (cl *cluster) newGateway(t *testing.T, messenger gateway.Messenger, opts gateway.Options) *gateway.Gateway {
	t.Helper()
	hub := chathub.NewManagerService(chathub.NewRegistry(), cl.bus, nil, nil)
	gw, err := gateway.New(hub, cl.presence, messenger, cl.store, auth.NewJWTResolver(secret), nil, nil, opts)
	require.NoError(t, err)
	_, err = gw.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		sctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = gw.Shutdown(sctx)
	})
	return gw
}

// connect attaches a new socket for userID to instance i.
func (cl *cluster) connect(i int, userID string) *testClient {
	c := newTestClient(userID)
	cl.nodes[i].gw.Attach(ctx, c, auth.Identity{ID: userID, Username: userID})
	return c
}

// send writes one frame and returns its ack correlation id.
func (cl *cluster) send(t *testing.T, gw *gateway.Gateway, c *testClient, event string, data any) string {
	t.Helper()
	id := strconv.FormatInt(cl.frameSeq.Add(1), 10)
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	out, err := json.Marshal(models.InboundFrame{Event: event, ID: id, Data: raw})
	require.NoError(t, err)
	gw.HandleFrame(c, out)
	return id
}

// waitAck waits for the ack of frame id.
func waitAck(t *testing.T, c *testClient, id string) ack {
	t.Helper()
	var f frame
	require.Eventually(t, func() bool {
		var ok bool
		f, ok = c.find(func(f frame) bool { return f.Event == gateway.EmitAck && f.ID == id })
		return ok
	}, waitFor, tick, "no ack for frame %s", id)
	var a ack
	require.NoError(t, json.Unmarshal(f.Data, &a))
	return a
}

// call sends a frame on instance i and waits for its ack.
func (cl *cluster) call(t *testing.T, i int, c *testClient, event string, data any) ack {
	t.Helper()
	return waitAck(t, c, cl.send(t, cl.nodes[i].gw, c, event, data))
}

func (cl *cluster) mustCall(t *testing.T, i int, c *testClient, event string, data any) ack {
	t.Helper()
	a := cl.call(t, i, c, event, data)
	require.True(t, a.Success, "%s failed: %s %s", event, a.Code, a.Error)
	return a
}

func decodeInto[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type payload map[string]any
