package store

import (
	"context"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"

	cachekeys "tickd/internal/cache"
	"tickd/internal/model"
)

// LatestCache mirrors the freshest accepted tick per symbol into Redis so
// dashboards can read last-price without touching Postgres. Entries are
// msgpack-encoded and expire on their own; the cache is advisory and its
// failures never fail ingestion.
type LatestCache struct {
	rds *redis.Redis
	ttl time.Duration
}

// NewLatestCache wraps a Redis client with the given entry TTL.
func NewLatestCache(rds *redis.Redis, ttl time.Duration) *LatestCache {
	return &LatestCache{rds: rds, ttl: ttl}
}

// Set stores the tick as the symbol's latest observation.
func (c *LatestCache) Set(ctx context.Context, tick model.Tick) {
	if c == nil || c.rds == nil {
		return
	}
	payload, err := msgpack.Marshal(tick)
	if err != nil {
		logx.WithContext(ctx).Errorf("latest cache: encode %s: %v", tick.Symbol, err)
		return
	}
	key := cachekeys.TickLatestKey(tick.Symbol)
	seconds := int(c.ttl / time.Second)
	if seconds <= 0 {
		seconds = 1
	}
	if err := c.rds.SetexCtx(ctx, key, string(payload), seconds); err != nil {
		logx.WithContext(ctx).Errorf("latest cache: set %s: %v", key, err)
	}
}

// Get loads the symbol's latest tick. The second return is false on a miss.
func (c *LatestCache) Get(ctx context.Context, symbol string) (model.Tick, bool) {
	if c == nil || c.rds == nil {
		return model.Tick{}, false
	}
	key := cachekeys.TickLatestKey(symbol)
	payload, err := c.rds.GetCtx(ctx, key)
	if err != nil || payload == "" {
		if err != nil {
			logx.WithContext(ctx).Errorf("latest cache: get %s: %v", key, err)
		}
		return model.Tick{}, false
	}
	var tick model.Tick
	if err := msgpack.Unmarshal([]byte(payload), &tick); err != nil {
		logx.WithContext(ctx).Errorf("latest cache: decode %s: %v", key, err)
		return model.Tick{}, false
	}
	return tick, true
}
