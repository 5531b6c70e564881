package chathub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"omechat/backend/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10 // SDP offers run to several KB
)

// WebSocketClient реалізує інтерфейс chathub.Client поверх gorilla/websocket.
type WebSocketClient struct {
	SessionID string
	Attrs     Attributes
	Conn      *websocket.Conn
	Hub       *ManagerService

	mu     sync.Mutex
	send   chan []byte
	closed bool

	disconnected atomic.Bool
}

func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, sessionID string, attrs Attributes, bufferSize int) *WebSocketClient {
	return &WebSocketClient{
		SessionID: sessionID,
		Attrs:     attrs,
		Conn:      conn,
		Hub:       hub,
		send:      make(chan []byte, bufferSize),
	}
}

func (c *WebSocketClient) GetSessionID() string      { return c.SessionID }
func (c *WebSocketClient) GetAttributes() Attributes { return c.Attrs }

// Send queues frame without blocking. Frames reach the socket in the order
// Send accepted them; across the frames of one connection the hub also
// guarantees MATCH_FOUND goes out before MATCH_ENDED.
func (c *WebSocketClient) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close закриває send канал, що зупинить writePump.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Run запускає 'pumps' для WebSocket. The client must already be registered.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// disconnect reports the loss of the transport to the hub exactly once,
// whichever pump notices it first.
func (c *WebSocketClient) disconnect() {
	if !c.disconnected.CompareAndSwap(false, true) {
		return
	}
	c.Hub.Disconnect(c)
	c.Close()
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.disconnect()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logging.L().Warn("websocket read failed", zap.String("session_id", c.SessionID), zap.Error(err))
			}
			return
		}
		c.Hub.HandleMessage(c, message)
	}
}

// writePump пише кадри з send у WebSocket, по одному на повідомлення.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.disconnect()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Канал закрито, закриваємо з'єднання WS
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logging.L().Debug("websocket write failed", zap.String("session_id", c.SessionID), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
