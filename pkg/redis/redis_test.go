package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantscan/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{Enabled: false},
	}

	client, err := New(cfg)
	require.NoError(t, err)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())
}

func TestRateLimiter_Disabled(t *testing.T) {
	client, _ := New(&config.Config{})
	limiter := NewRateLimiter(client, "test")

	allowed, remaining, err := limiter.Allow(context.Background(), KISRateLimit)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, KISRateLimit.Limit, remaining)
}

func TestCache_Disabled(t *testing.T) {
	client, _ := New(&config.Config{})
	cache := NewCache(client, "test")

	var result string
	found, err := cache.Get(context.Background(), "key", &result)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, cache.Set(context.Background(), "key", "v", time.Minute))

	names, err := cache.HashGetAll(context.Background(), "names")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestCache_GetHitAndMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewCache(Wrap(db), "quantscan")

	mock.ExpectGet("quantscan:cache:series:005930:100").SetVal(`[{"close":71000}]`)
	mock.ExpectGet("quantscan:cache:flow:000660").RedisNil()

	var bars []map[string]float64
	found, err := cache.Get(context.Background(), SeriesKey("005930", 100), &bars)
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, bars, 1)
	assert.Equal(t, 71000.0, bars[0]["close"])

	var flow map[string]interface{}
	found, err = cache.Get(context.Background(), FlowKey("000660"), &flow)
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_Set(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewCache(Wrap(db), "quantscan")

	mock.ExpectSet("quantscan:cache:index:1001:30", []byte(`"ok"`), TTLScan).SetVal("OK")

	require.NoError(t, cache.Set(context.Background(), IndexKey("1001", 30), "ok", TTLScan))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_Hash(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewCache(Wrap(db), "quantscan")

	mock.ExpectHSet("quantscan:names", "005930", "삼성전자").SetVal(1)
	mock.ExpectHGetAll("quantscan:names").SetVal(map[string]string{"005930": "삼성전자"})

	require.NoError(t, cache.HashSet(context.Background(), "names", map[string]string{"005930": "삼성전자"}))

	got, err := cache.HashGetAll(context.Background(), "names")
	require.NoError(t, err)
	assert.Equal(t, "삼성전자", got["005930"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"SeriesKey", SeriesKey("005930", 100), "series:005930:100"},
		{"IndexKey", IndexKey("2001", 30), "index:2001:30"},
		{"FlowKey", FlowKey("373220"), "flow:373220"},
		{"ListingsKey", ListingsKey("20240105"), "listings:20240105"},
		{"QuoteKey", QuoteKey("005930"), "quote:005930"},
		{"OrderBookKey", OrderBookKey("005930"), "orderbook:005930"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}
