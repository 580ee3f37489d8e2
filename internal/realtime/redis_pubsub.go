package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	topicPrefix    = "hearth:rt:"
	publishTimeout = 5 * time.Second
)

// envelope is what travels over Redis between instances.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// RedisPubSub fans hub events out across server instances. It holds one pattern
// subscription for every channel and dispatches messages to the local handlers.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger

	mu       sync.Mutex
	handlers map[string]map[uint64]func(event string, payload []byte)
	nextID   uint64
	stop     context.CancelFunc
}

// NewRedisPubSub creates the bridge. The Redis subscription starts with the first handler.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	return &RedisPubSub{
		client:   client,
		logger:   logger,
		handlers: make(map[string]map[uint64]func(string, []byte)),
	}
}

// PublishChannelEvent implements RedisPublisher.
func (r *RedisPubSub) PublishChannelEvent(channel, event string, payload []byte) error {
	body, err := json.Marshal(envelope{Event: event, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, topicPrefix+channel, body).Err()
}

// SubscribeChannel implements RedisSubscriber.
func (r *RedisPubSub) SubscribeChannel(channel string, handler func(event string, payload []byte)) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop == nil {
		if err := r.startLocked(); err != nil {
			return nil, err
		}
	}
	r.nextID++
	id := r.nextID
	if r.handlers[channel] == nil {
		r.handlers[channel] = make(map[uint64]func(string, []byte))
	}
	r.handlers[channel][id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.handlers[channel], id)
			if len(r.handlers[channel]) == 0 {
				delete(r.handlers, channel)
			}
		})
	}, nil
}

func (r *RedisPubSub) startLocked() error {
	ctx, cancel := context.WithCancel(context.Background())
	sub := r.client.PSubscribe(ctx, topicPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		cancel()
		_ = sub.Close()
		return err
	}
	r.stop = cancel
	go r.loop(ctx, sub)
	return nil
}

func (r *RedisPubSub) loop(ctx context.Context, sub *redis.PubSub) {
	defer sub.Close()
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			r.dispatch(strings.TrimPrefix(msg.Channel, topicPrefix), msg.Payload)
		}
	}
}

func (r *RedisPubSub) dispatch(channel, raw string) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		r.logger.Debug("bad realtime payload", zap.String("channel", channel), zap.Error(err))
		return
	}
	r.mu.Lock()
	targets := make([]func(string, []byte), 0, len(r.handlers[channel]))
	for _, h := range r.handlers[channel] {
		targets = append(targets, h)
	}
	r.mu.Unlock()
	for _, h := range targets {
		h(env.Event, env.Data)
	}
}

// Close stops the shared subscription.
func (r *RedisPubSub) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		r.stop()
		r.stop = nil
	}
}
