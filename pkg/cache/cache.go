// Package cache stores rendered read models (calendar months, leaderboards) in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "hearth:view:"

// Scopes group cache keys so a mutation can drop every view it affects.
const (
	ScopeCalendar    = "calendar"
	ScopeLeaderboard = "leaderboard"
	ScopeSettings    = "settings"
	ScopeMembers     = "members"
	ScopeFeed        = "feed"
)

// Views is a JSON view cache. A nil *Views is valid and caches nothing.
type Views struct {
	client *redis.Client
	logger *zap.Logger
}

// NewViews creates a view cache backed by client.
func NewViews(client *redis.Client, logger *zap.Logger) *Views {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Views{client: client, logger: logger}
}

// Key builds a cache key inside scope.
func Key(scope string, parts ...interface{}) string {
	k := keyPrefix + scope
	for _, p := range parts {
		k += ":" + fmt.Sprint(p)
	}
	return k
}

// Get loads key into dst. It returns false on a miss or any cache failure.
func (v *Views) Get(ctx context.Context, key string, dst interface{}) bool {
	if v == nil || v.client == nil {
		return false
	}
	raw, err := v.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			v.logger.Warn("view cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		v.logger.Warn("view cache decode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Set stores value under key for ttl. Failures are logged, never returned.
func (v *Views) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if v == nil || v.client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		v.logger.Warn("view cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := v.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		v.logger.Warn("view cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes every key under the given scopes.
func (v *Views) Invalidate(ctx context.Context, scopes ...string) {
	if v == nil || v.client == nil {
		return
	}
	for _, scope := range scopes {
		iter := v.client.Scan(ctx, 0, keyPrefix+scope+"*", 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			v.logger.Warn("view cache scan failed", zap.String("scope", scope), zap.Error(err))
			continue
		}
		if len(keys) == 0 {
			continue
		}
		if err := v.client.Del(ctx, keys...).Err(); err != nil {
			v.logger.Warn("view cache invalidate failed", zap.String("scope", scope), zap.Error(err))
		}
	}
}
