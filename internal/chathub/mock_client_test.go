package chathub_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type MockClient struct {
	id          string
	userID      string
	RecvChannel chan []byte

	mu     sync.Mutex
	closed bool
}

func newMockClient(id, userID string) *MockClient {
	return &MockClient{
		id:          id,
		userID:      userID,
		RecvChannel: make(chan []byte, 10),
	}
}

func (c *MockClient) ID() string     { return c.id }
func (c *MockClient) UserID() string { return c.userID }

func (c *MockClient) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.RecvChannel <- frame:
		return true
	default:
		return false
	}
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *MockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type frame struct {
	Event string          `json:"event"`
	Room  string          `json:"room"`
	Data  json.RawMessage `json:"data"`
}

// recv waits for the next frame on c.
func recv(t *testing.T, c *MockClient) frame {
	t.Helper()
	select {
	case raw := <-c.RecvChannel:
		var f frame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	case <-time.After(time.Second):
		t.Fatalf("%s received nothing", c.id)
		return frame{}
	}
}

func assertSilent(t *testing.T, c *MockClient) {
	t.Helper()
	select {
	case raw := <-c.RecvChannel:
		t.Fatalf("%s unexpectedly received %s", c.id, raw)
	case <-time.After(50 * time.Millisecond):
	}
}
