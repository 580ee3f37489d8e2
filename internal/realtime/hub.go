package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Heartbeat: the server pings every PingInterval and drops clients silent for PongWait.
const (
	PingInterval = 30 * time.Second
	PongWait     = 60 * time.Second
)

// Event names pushed to clients.
const (
	EventPostCreated  = "post_created"
	EventLevelUp      = "level_up"
	EventEventChanged = "event_changed"
	EventOnlineCount  = "online_count"
)

// ChannelCommunity is the room every connected member joins.
const ChannelCommunity = "community"

// UserChannel is the private room of one member.
func UserChannel(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// Hub maintains channel -> set of connections and broadcasts messages.
// Uses Redis pub/sub for horizontal scaling: local broadcast + publish to Redis.
type Hub struct {
	// channel -> map[clientID]*Client
	rooms    map[string]map[string]*Client
	subs     map[string]func() // cancel Redis subscription per channel
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishChannelEvent(channel, event string, payload []byte) error
}

// RedisSubscriber subscribes to channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeChannel(channel string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. redisPub and redisSub may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to its channels. Starts a Redis subscription for a channel on its first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	for _, ch := range c.channels() {
		if h.rooms[ch] == nil {
			h.rooms[ch] = make(map[string]*Client)
			h.subscribeLocked(ch)
		}
		h.rooms[ch][c.ID] = c
	}
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
}

func (h *Hub) subscribeLocked(channel string) {
	if h.redisSub == nil {
		return
	}
	cancel, err := h.redisSub.SubscribeChannel(channel, func(event string, payload []byte) {
		h.Broadcast(channel, event, json.RawMessage(payload))
	})
	if err != nil {
		h.logger.Warn("redis subscribe failed", zap.String("channel", channel), zap.Error(err))
		return
	}
	h.subs[channel] = cancel
}

// Unregister removes a client. Cancels a channel's Redis subscription when its last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	for _, ch := range c.channels() {
		m, ok := h.rooms[ch]
		if !ok {
			continue
		}
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, ch)
			if cancel, ok := h.subs[ch]; ok {
				cancel()
				delete(h.subs, ch)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
}

// Broadcast sends a message to all clients in a channel (local only).
func (h *Hub) Broadcast(channel, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return
		}
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[channel] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish delivers to every instance. With Redis the subscriber callback performs the
// broadcast once for all instances (including this one); without it delivery is local.
func (h *Hub) Publish(channel, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if h.redis != nil {
		if err := h.redis.PublishChannelEvent(channel, event, data); err != nil {
			h.logger.Warn("redis publish failed", zap.String("channel", channel), zap.Error(err))
			h.Broadcast(channel, event, json.RawMessage(data))
		}
		return
	}
	h.Broadcast(channel, event, json.RawMessage(data))
}

// PublishCommunity publishes to every connected member.
func (h *Hub) PublishCommunity(event string, payload interface{}) {
	h.Publish(ChannelCommunity, event, payload)
}

// PublishUser publishes to one member's connections.
func (h *Hub) PublishUser(userID uuid.UUID, event string, payload interface{}) {
	h.Publish(UserChannel(userID), event, payload)
}

// OnlineCount returns the number of local connections in the community channel.
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[ChannelCommunity])
}
