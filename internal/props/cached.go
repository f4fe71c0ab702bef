package props

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultCacheTTL is used when NewCached is given a zero ttl.
const DefaultCacheTTL = time.Minute

// Cached is a read-through cache in front of another Table. Writes and
// deletes go to the backing table and then invalidate the cached entry.
type Cached struct {
	next   Table
	cache  *ttlcache.Cache[string, map[string]any]
	logger *slog.Logger
}

var _ Table = (*Cached)(nil)

// NewCached wraps next. Entries expire ttl after they were loaded; reads do
// not extend their lifetime.
func NewCached(next Table, ttl time.Duration, logger *slog.Logger) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache := ttlcache.New[string, map[string]any](
		ttlcache.WithTTL[string, map[string]any](ttl),
		ttlcache.WithDisableTouchOnHit[string, map[string]any](),
	)
	go cache.Start()
	return &Cached{next: next, cache: cache, logger: logger.With("component", "props-cache")}
}

func (c *Cached) Set(ctx context.Context, eventID, key string, value any) error {
	defer c.cache.Delete(eventID)
	return c.next.Set(ctx, eventID, key, value)
}

func (c *Cached) SetAll(ctx context.Context, eventID string, values map[string]any) error {
	defer c.cache.Delete(eventID)
	return SetAll(ctx, c.next, eventID, values)
}

func (c *Cached) GetAll(ctx context.Context, eventID string) (map[string]any, error) {
	if item := c.cache.Get(eventID); item != nil && !item.IsExpired() {
		c.logger.Debug("cache hit", "event_id", eventID)
		return maps.Clone(item.Value()), nil
	}
	values, err := c.next.GetAll(ctx, eventID)
	if err != nil {
		return nil, err
	}
	c.cache.Set(eventID, maps.Clone(values), ttlcache.DefaultTTL)
	return values, nil
}

func (c *Cached) Delete(ctx context.Context, eventID string) error {
	defer c.cache.Delete(eventID)
	return c.next.Delete(ctx, eventID)
}

// Len reports the number of cached entries.
func (c *Cached) Len() int {
	return c.cache.Len()
}

func (c *Cached) Close() error {
	c.cache.Stop()
	return c.next.Close()
}
