// Package cache is a Redis-backed response cache with stale-while-revalidate.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"etatcivil/internal/events"
	"etatcivil/internal/platform/metrics"
)

const (
	refreshTimeout = 10 * time.Second
	scanBatch      = 100
	generationKey  = "_generation"
)

// storeIfCurrent writes an entry only when the generation read before the
// load is still current, so a load racing an invalidation is discarded.
var storeIfCurrent = redis.NewScript(`
local gen = redis.call('GET', KEYS[2])
if not gen then
  gen = '0'
end
if gen ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// Loader computes a fresh value for a key.
type Loader func(ctx context.Context) ([]byte, error)

type entry struct {
	Value    json.RawMessage `json:"value"`
	StoredAt time.Time       `json:"storedAt"`
}

// Cache serves entries younger than ttl as hits, entries younger than
// ttl+stale as stale hits while one background refresh runs, and loads
// everything else inline. A nil Redis client disables caching.
type Cache struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	stale   time.Duration
	group   singleflight.Group
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Cache)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func New(client redis.UniversalClient, prefix string, ttl, stale time.Duration, opts ...Option) *Cache {
	c := &Cache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		stale:  stale,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached bytes for key, loading them when absent or expired.
// Redis failures fall back to load.
func (c *Cache) Get(ctx context.Context, key string, load Loader) ([]byte, error) {
	if c.client == nil {
		return load(ctx)
	}
	fullKey := c.prefix + key

	raw, err := c.client.Get(ctx, fullKey).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		c.metrics.IncCacheLookup("miss")
		return c.refresh(ctx, fullKey, load)
	case err != nil:
		c.logger.WarnContext(ctx, "cache read failed, loading directly", "key", fullKey, "error", err.Error())
		c.metrics.IncCacheLookup("error")
		return load(ctx)
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.metrics.IncCacheLookup("miss")
		return c.refresh(ctx, fullKey, load)
	}

	age := c.now().Sub(e.StoredAt)
	switch {
	case age < c.ttl:
		c.metrics.IncCacheLookup("hit")
		return e.Value, nil
	case age < c.ttl+c.stale:
		c.metrics.IncCacheLookup("stale")
		c.revalidate(ctx, fullKey, load)
		return e.Value, nil
	default:
		c.metrics.IncCacheLookup("miss")
		return c.refresh(ctx, fullKey, load)
	}
}

// refresh loads and stores a value, collapsing concurrent loads of one key.
func (c *Cache) refresh(ctx context.Context, fullKey string, load Loader) ([]byte, error) {
	v, err, _ := c.group.Do(fullKey, func() (any, error) {
		return c.loadAndStore(ctx, fullKey, load)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Cache) revalidate(ctx context.Context, fullKey string, load Loader) {
	bg := context.WithoutCancel(ctx)
	c.group.DoChan(fullKey, func() (any, error) {
		bg, cancel := context.WithTimeout(bg, refreshTimeout)
		defer cancel()
		v, err := c.loadAndStore(bg, fullKey, load)
		if err != nil {
			c.logger.WarnContext(bg, "background cache refresh failed", "key", fullKey, "error", err.Error())
		}
		return v, err
	})
}

func (c *Cache) loadAndStore(ctx context.Context, fullKey string, load Loader) ([]byte, error) {
	gen, genErr := c.generation(ctx)
	v, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		c.logger.WarnContext(ctx, "cache generation unreadable, not storing", "key", fullKey, "error", genErr.Error())
		return v, nil
	}
	raw, err := json.Marshal(entry{Value: v, StoredAt: c.now()})
	if err != nil {
		return nil, err
	}
	ttl := max((c.ttl + c.stale).Milliseconds(), 1)
	stored, err := storeIfCurrent.Run(ctx, c.client, []string{fullKey, c.prefix + generationKey}, gen, raw, ttl).Int()
	switch {
	case err != nil:
		c.logger.WarnContext(ctx, "cache write failed", "key", fullKey, "error", err.Error())
	case stored == 0:
		c.logger.DebugContext(ctx, "cache invalidated during load, not storing", "key", fullKey)
	}
	return v, nil
}

func (c *Cache) generation(ctx context.Context) (string, error) {
	gen, err := c.client.Get(ctx, c.prefix+generationKey).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

// Invalidate drops every entry under the cache prefix. The generation is bumped
// first so loads already in flight do not store what they read.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	genKey := c.prefix + generationKey
	if err := c.client.Incr(ctx, genKey).Err(); err != nil {
		return err
	}
	var cursor uint64
	for {
		found, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", scanBatch).Result()
		if err != nil {
			return err
		}
		keys := found[:0]
		for _, k := range found {
			if k != genKey {
				keys = append(keys, k)
			}
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Invalidator clears the cache whenever a workflow event is published.
type Invalidator struct {
	cache *Cache
}

func NewInvalidator(cache *Cache) *Invalidator {
	return &Invalidator{cache: cache}
}

func (i *Invalidator) Name() string {
	return "stats-cache"
}

func (i *Invalidator) Handle(ctx context.Context, _ events.Event) error {
	return i.cache.Invalidate(ctx)
}
