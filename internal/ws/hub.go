// Package ws keeps the realtime connections of signed-in users and pushes
// typed frames to them.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	authTimeout    = 5 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 8192
	sendBuffer     = 256
)

var ErrBufferFull = errors.New("client send buffer full")

// AuthFunc validates the token sent in the first frame.
type AuthFunc func(ctx context.Context, token string) (userID, role string, err error)

// MessageHandler receives frames sent by authenticated clients.
type MessageHandler func(ctx context.Context, c *Client, msgType string, data json.RawMessage) error

// Frame is the envelope of every server-to-client message.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type Client struct {
	ID     string
	UserID string
	Role   string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
}

type Hub struct {
	clients    map[string]*Client
	mu         sync.RWMutex
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	authFunc   AuthFunc
	handler    MessageHandler
	upgrader   websocket.Upgrader
	log        *zap.Logger
}

// NewHub creates a hub. allowedOrigins empty accepts any origin.
func NewHub(authFunc AuthFunc, allowedOrigins []string, log *zap.Logger) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		done:       make(chan struct{}),
		authFunc:   authFunc,
		log:        log.Named("ws"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

func (h *Hub) SetMessageHandler(handler MessageHandler) {
	h.handler = handler
}

// Run owns registration until ctx is done, then closes every connection.
// After that, joins are refused and leaves return without waiting.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.RLock()
			for _, c := range h.clients {
				_ = c.conn.Close()
			}
			h.mu.RUnlock()
			h.log.Info("hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.ID] = c
			h.mu.Unlock()
			h.log.Debug("client registered", zap.String("client_id", c.ID), zap.String("user_id", c.UserID))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.ID]; ok {
				delete(h.clients, c.ID)
				close(c.send)
			}
			h.mu.Unlock()
			h.log.Debug("client unregistered", zap.String("client_id", c.ID))
		}
	}
}

// join hands c to Run. It reports false once the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// SendToUser queues raw bytes on every connection of the user.
func (h *Hub) SendToUser(userID string, message []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var err error
	for _, c := range h.clients {
		if c.UserID != userID {
			continue
		}
		select {
		case c.send <- message:
		default:
			err = ErrBufferFull
			h.log.Warn("dropped frame", zap.String("user_id", userID), zap.String("client_id", c.ID))
		}
	}
	return err
}

// SendTypedMessage pushes {type, data} to the user. Offline users are skipped.
func (h *Hub) SendTypedMessage(userID, msgType string, data any) error {
	msg, err := json.Marshal(Frame{Type: msgType, Data: data})
	if err != nil {
		return err
	}
	return h.SendToUser(userID, msg)
}

func (h *Hub) IsUserConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and expects {"token": "..."} as the first
// frame within authTimeout.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(authTimeout))
	var auth struct {
		Token string `json:"token"`
	}
	if err := conn.ReadJSON(&auth); err != nil || auth.Token == "" {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication required"))
		_ = conn.Close()
		return
	}

	userID, role, err := h.authFunc(r.Context(), auth.Token)
	if err != nil {
		_ = conn.WriteJSON(Frame{Type: "error", Data: "invalid token"})
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token"))
		_ = conn.Close()
		h.log.Debug("auth rejected", zap.Error(err))
		return
	}

	c := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Role:   role,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		hub:    h,
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	if err := conn.WriteJSON(Frame{Type: "authenticated", Data: map[string]string{"user_id": userID}}); err != nil {
		_ = conn.Close()
		return
	}

	if !h.join(c) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("read error", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}

		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data,omitempty"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			_ = c.Send("error", "malformed frame")
			continue
		}
		if msg.Type == "ping" {
			_ = c.Send("pong", nil)
			continue
		}
		if c.hub.handler == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err = c.hub.handler(ctx, c, msg.Type, msg.Data)
		cancel()
		if err != nil {
			c.hub.log.Debug("frame rejected", zap.String("type", msg.Type), zap.Error(err))
			_ = c.Send("error", err.Error())
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.hub.done:
			return
		}
	}
}

// Send queues a typed frame for this connection only.
func (c *Client) Send(msgType string, data any) error {
	msg, err := json.Marshal(Frame{Type: msgType, Data: data})
	if err != nil {
		return err
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrBufferFull
	}
}
