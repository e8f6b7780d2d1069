package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gst-checkout/internal/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyOrderStatus = "order_status:%d"
	TTLStatusCache = 5 * time.Minute
)

// StatusCache fronts status reads. The database stays authoritative: cache
// failures are logged and treated as misses.
//
// Set keeps whichever view carries the later UpdatedAt, so a reader that
// loaded a row before a writer committed cannot replace the writer's view.
// Writers call Set with the committed view instead of deleting the entry.
type StatusCache interface {
	Get(ctx context.Context, orderID int64) (*StatusView, bool)
	Set(ctx context.Context, view StatusView)
}

// setIfNewer stores ARGV[2] under KEYS[1] unless the entry already holds a
// version at or after ARGV[1]. Versions are UpdatedAt in microseconds, which
// fits a Lua number exactly.
var setIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'view', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

type redisStatusCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisStatusCache(rdb redis.Cmdable, ttl time.Duration) StatusCache {
	if ttl <= 0 {
		ttl = TTLStatusCache
	}
	return &redisStatusCache{rdb: rdb, ttl: ttl}
}

func (c *redisStatusCache) Get(ctx context.Context, orderID int64) (*StatusView, bool) {
	s, err := c.rdb.HGet(ctx, fmt.Sprintf(keyOrderStatus, orderID), "view").Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			cacheLog(ctx, "Get", orderID).Warn("status cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var v StatusView
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		cacheLog(ctx, "Get", orderID).Warn("corrupt status cache entry", zap.Error(err))
		return nil, false
	}
	return &v, true
}

func (c *redisStatusCache) Set(ctx context.Context, view StatusView) {
	b, err := json.Marshal(view)
	if err != nil {
		return
	}
	key := fmt.Sprintf(keyOrderStatus, view.OrderID)
	err = setIfNewer.Run(ctx, c.rdb, []string{key}, view.UpdatedAt.UnixMicro(), string(b), c.ttl.Milliseconds()).Err()
	if err != nil {
		cacheLog(ctx, "Set", view.OrderID).Warn("status cache write failed", zap.Error(err))
	}
}

func cacheLog(ctx context.Context, method string, orderID int64) *zap.Logger {
	return logger.FromCtx(ctx).With(
		zap.String("layer", "cache"),
		zap.String("method", method),
		zap.Int64("order_id", orderID),
	)
}

// NoopStatusCache is used when no Redis address is configured.
type NoopStatusCache struct{}

func (NoopStatusCache) Get(context.Context, int64) (*StatusView, bool) { return nil, false }
func (NoopStatusCache) Set(context.Context, StatusView)               {}
