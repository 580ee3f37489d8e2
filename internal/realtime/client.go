package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/auth"
	"github.com/aura-community/backend/pkg/response"
)

const (
	writeWait      = 10 * time.Second
	maxInboundSize = 4096
	sendBuffer     = 256
)

// WSMessage is the frame sent to and read from clients.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is one member's socket. A member with two tabs has two clients.
type Client struct {
	ID     string
	UserID uuid.UUID
	Role   string
	hub    *Hub
	conn   *websocket.Conn
	send   chan WSMessage
	logger *zap.Logger
}

// NewClient creates a client that is not yet attached to a connection.
func NewClient(hub *Hub, userID uuid.UUID, role string, logger *zap.Logger) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Role:   role,
		hub:    hub,
		send:   make(chan WSMessage, sendBuffer),
		logger: logger,
	}
}

func (c *Client) channels() []string {
	return []string{ChannelCommunity, UserChannel(c.UserID)}
}

// Identity is the authenticated member behind a token.
type Identity struct {
	UserID uuid.UUID
	Role   string
}

// Authenticator resolves a token to an active member, rejecting banned ones.
type Authenticator func(c *gin.Context, token string) (Identity, error)

// ServeWs authenticates, upgrades and runs the client until it disconnects.
// Browsers cannot set headers on the upgrade, so ?token= is accepted next to a bearer header.
func ServeWs(hub *Hub, logger *zap.Logger, authenticate Authenticator, allowedOrigins map[string]bool) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(allowedOrigins) == 0 || allowedOrigins["*"] || allowedOrigins[origin]
		},
	}
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if token == "" {
			response.BadRequest(c, "token required")
			return
		}
		id, err := authenticate(c, token)
		switch {
		case errors.Is(err, auth.ErrBanned):
			response.Forbidden(c, auth.ErrBanned.Error())
			return
		case err != nil:
			response.Unauthorized(c, "invalid token")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		client := NewClient(hub, id.UserID, id.Role, logger)
		client.conn = conn
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

// readPump answers presence queries; everything else from the client is ignored.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundSize)
	extend := func() { _ = c.conn.SetReadDeadline(time.Now().Add(PongWait)) }
	extend()
	c.conn.SetPongHandler(func(string) error { extend(); return nil })

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
		extend()
		if msg.Event == "presence" {
			c.trySend(EventOnlineCount, map[string]int{"count": c.hub.OnlineCount()})
		}
	}
}

func (c *Client) trySend(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval)
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
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
