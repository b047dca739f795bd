package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides typed JSON caching shared between processes
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// Enabled reports whether the backing client is live
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil && c.client.Enabled()
}

func (c *Cache) key(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get retrieves a cached value; a missing key is (false, nil)
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	return c.client.Redis().Set(ctx, c.key(key), data, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.Enabled() {
		return nil
	}

	return c.client.Redis().Del(ctx, c.key(key)).Err()
}

// HashGetAll reads a whole hash stored under prefix:key
func (c *Cache) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	if !c.Enabled() {
		return map[string]string{}, nil
	}
	return c.client.Redis().HGetAll(ctx, fmt.Sprintf("%s:%s", c.prefix, key)).Result()
}

// HashSet merges fields into the hash stored under prefix:key
func (c *Cache) HashSet(ctx context.Context, key string, fields map[string]string) error {
	if !c.Enabled() || len(fields) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	return c.client.Redis().HSet(ctx, fmt.Sprintf("%s:%s", c.prefix, key), values).Err()
}

// Predefined TTLs
const (
	TTLQuote = 5 * time.Second  // 현재가 스냅샷
	TTLScan  = 10 * time.Minute // 일봉/수급/유니버스 (스캔 주기)
	TTLDaily = 24 * time.Hour   // 일별 데이터
)

// Collector cache key generators
func SeriesKey(ticker string, days int) string {
	return fmt.Sprintf("series:%s:%d", ticker, days)
}

func IndexKey(code string, days int) string {
	return fmt.Sprintf("index:%s:%d", code, days)
}

func FlowKey(ticker string) string {
	return fmt.Sprintf("flow:%s", ticker)
}

func ListingsKey(date string) string {
	return fmt.Sprintf("listings:%s", date)
}

func QuoteKey(ticker string) string {
	return fmt.Sprintf("quote:%s", ticker)
}

func OrderBookKey(ticker string) string {
	return fmt.Sprintf("orderbook:%s", ticker)
}
