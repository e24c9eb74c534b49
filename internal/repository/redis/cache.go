package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirinyoku/tixsync/internal/metrics"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache is a JSON read-through cache for catalog reads. Concurrent misses on
// one key share a single load. Redis failures degrade to a direct load; the
// cache never turns a healthy database read into an error.
type Cache struct {
	rdb    *redis.Client
	sf     singleflight.Group
	logger *slog.Logger
}

func NewCache(client *redis.Client, logger *slog.Logger) *Cache {
	return &Cache{rdb: client, logger: logger}
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Cache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	return c.rdb.Del(ctx, keys...).Err()
}

// InvalidateTicketType drops cached views that include the ticket type's quota.
func (c *Cache) InvalidateTicketType(ctx context.Context, ticketTypeID, eventID int64) error {
	return c.Del(
		ctx,
		KeyTicketTypeAvailability(ticketTypeID),
		KeyEventTicketTypes(eventID),
	)
}

// lookup decodes key into out. A corrupt entry is dropped and reported as
// a miss.
func (c *Cache) lookup(ctx context.Context, key string, out any) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Warn("dropping undecodable cache entry", slog.String("key", key), slog.Any("error", err))
		_ = c.rdb.Del(ctx, key).Err()
		return false, nil
	}

	return true, nil
}

func (c *Cache) store(ctx context.Context, key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("cache encode failed", slog.String("key", key), slog.Any("error", err))
		return
	}

	if err := c.rdb.Set(ctx, key, string(b), ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}

// GetOrSetJSON returns the cached value under key or loads, stores and
// returns it. Loader errors are returned as-is and never cached.
func GetOrSetJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	var cached T

	ok, err := c.lookup(ctx, key, &cached)
	switch {
	case err != nil:
		metrics.CacheLookup("error")
		c.logger.Warn("cache read failed, loading directly", slog.String("key", key), slog.Any("error", err))
		return loader(ctx)
	case ok:
		metrics.CacheLookup("hit")
		return cached, nil
	}

	metrics.CacheLookup("miss")

	// The shared load outlives any single caller's cancellation.
	shared := context.WithoutCancel(ctx)

	v, err, _ := c.sf.Do(key, func() (any, error) {
		loaded, err := loader(shared)
		if err != nil {
			return nil, err
		}
		c.store(shared, key, loaded, ttl)
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("redis.GetOrSetJSON: unexpected %T for %s", v, key)
	}

	return out, nil
}
