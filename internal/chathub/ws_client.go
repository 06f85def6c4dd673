package chathub

import (
	"sparkchat/backend/internal/config"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketClient implements Client over a gorilla websocket connection.
type WebSocketClient struct {
	id      string
	userID  string
	Conn    *websocket.Conn
	handler FrameHandler
	log     *zap.Logger

	send      chan []byte
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func NewWebSocketClient(conn *websocket.Conn, userID string, handler FrameHandler, log *zap.Logger) *WebSocketClient {
	id := uuid.NewString()
	return &WebSocketClient{
		id:      id,
		userID:  userID,
		Conn:    conn,
		handler: handler,
		log:     log.With(zap.String("socket_id", id), zap.String("user_id", userID)),
		send:    make(chan []byte, config.SendBufferSize),
	}
}

func (c *WebSocketClient) ID() string     { return c.id }
func (c *WebSocketClient) UserID() string { return c.userID }

func (c *WebSocketClient) Send(frame []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes the send channel, which makes writePump say goodbye and close
// the connection; readPump then fails its next read and detaches.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.handler.Detach(c)
		c.Close()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(config.MaxFrameSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("socket read failed", zap.Error(err))
			}
			return
		}
		c.handler.HandleFrame(c, message)
	}
}

// writePump drains the send channel. Frames already queued are written in the
// same pass before the next select.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(config.PingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.Conn.WriteMessage(websocket.TextMessage, next); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
