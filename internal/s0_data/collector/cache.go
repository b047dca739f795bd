package collector

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/quantscan/pkg/logger"
	"github.com/wonny/quantscan/pkg/redis"
)

// CacheEntry is one cached upstream answer
type CacheEntry struct {
	FetchedAt time.Time
	TTL       time.Duration
	Payload   interface{}
}

// Expired reports whether the entry is older than its TTL
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.Sub(e.FetchedAt) >= e.TTL
}

// Cache is a two-tier TTL cache: in-process map, then the shared Redis tier.
// 읽기는 잠금 없이 수행, 동시 콜드 미스 시 중복 조회 허용
type Cache struct {
	entries sync.Map // key → *CacheEntry
	shared  *redis.Cache
	logger  *logger.Logger
	now     func() time.Time
}

// NewCache creates a cache; shared may be nil or disabled
func NewCache(shared *redis.Cache, log *logger.Logger) *Cache {
	return &Cache{
		shared: shared,
		logger: log,
		now:    time.Now,
	}
}

// cacheGet returns a live entry from memory, else from Redis (decoded into T)
func cacheGet[T any](ctx context.Context, c *Cache, key string, ttl time.Duration) (T, bool) {
	var zero T

	if v, ok := c.entries.Load(key); ok {
		entry := v.(*CacheEntry)
		if !entry.Expired(c.now()) {
			if payload, ok := entry.Payload.(T); ok {
				return payload, true
			}
		}
	}

	if !c.shared.Enabled() {
		return zero, false
	}

	var payload T
	found, err := c.shared.Get(ctx, key, &payload)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Debug("Shared cache read failed")
		return zero, false
	}
	if !found {
		return zero, false
	}

	// Redis TTL이 만료를 관리하므로 메모리 엔트리는 지금부터 ttl
	c.entries.Store(key, &CacheEntry{FetchedAt: c.now(), TTL: ttl, Payload: payload})
	return payload, true
}

// put stores payload in both tiers
func (c *Cache) put(ctx context.Context, key string, payload interface{}, ttl time.Duration) {
	c.entries.Store(key, &CacheEntry{FetchedAt: c.now(), TTL: ttl, Payload: payload})

	if err := c.shared.Set(ctx, key, payload, ttl); err != nil {
		c.logger.WithError(err).WithField("key", key).Debug("Shared cache write failed")
	}
}

// Clear drops every in-process entry (shared tier expires on its own)
func (c *Cache) Clear() {
	c.entries.Range(func(key, _ interface{}) bool {
		c.entries.Delete(key)
		return true
	})
}

// PurgeExpired removes expired in-process entries and returns how many
func (c *Cache) PurgeExpired() int {
	now := c.now()
	purged := 0
	c.entries.Range(func(key, v interface{}) bool {
		if v.(*CacheEntry).Expired(now) {
			c.entries.Delete(key)
			purged++
		}
		return true
	})
	return purged
}

// Len counts in-process entries, expired ones included
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
