package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/indicators"
	"github.com/wonny/quantscan/internal/s0_data/quality"
	"github.com/wonny/quantscan/internal/s1_universe"
	"github.com/wonny/quantscan/pkg/logger"
	"github.com/wonny/quantscan/pkg/metrics"
	"github.com/wonny/quantscan/pkg/redis"
)

// Collector serves cached market data with a synthetic fallback
// ⭐ SSOT: 시장 데이터 접근은 이 패키지에서만
type Collector struct {
	primary  Source
	fallback Source // nil이면 폴백 없음 (synthetic 모드)
	cache    *Cache
	names    NameStore
	quality  *quality.QualityGate
	config   Config
	metrics  *metrics.Recorder
	logger   *logger.Logger

	nameMu    sync.RWMutex
	nameCache map[string]string

	now func() time.Time
}

// Config holds collector configuration
type Config struct {
	TTL      time.Duration      // 일봉/지수/수급/유니버스
	QuoteTTL time.Duration      // 현재가/호가 스냅샷
	Universe s1_universe.Config // 제외 키워드 등 기본 필터
	Quality  quality.Config     // 일봉 품질 임계값, 0이면 기본값
}

// NewCollector creates a new Collector instance
func NewCollector(
	primary Source,
	fallback Source,
	cache *Cache,
	names NameStore,
	cfg Config,
	rec *metrics.Recorder,
	log *logger.Logger,
) *Collector {
	if cfg.TTL <= 0 {
		cfg.TTL = redis.TTLScan
	}
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = redis.TTLQuote
	}
	if names == nil {
		names = NewMemoryNameStore()
	}
	if cfg.Quality == (quality.Config{}) {
		cfg.Quality = quality.DefaultConfig()
	}
	l := log.WithField("module", "collector")
	if cache == nil {
		cache = NewCache(nil, l)
	}

	return &Collector{
		primary:   primary,
		fallback:  fallback,
		cache:     cache,
		names:     names,
		quality:   quality.NewQualityGate(cfg.Quality),
		config:    cfg,
		metrics:   rec,
		logger:    l,
		nameCache: make(map[string]string),
		now:       time.Now,
	}
}

var _ MarketData = (*Collector)(nil)

// SourceName reports the primary adapter
func (c *Collector) SourceName() string {
	return c.primary.Name()
}

// fetch runs the cache → primary → fallback read path for one operation.
// 폴백 결과는 프로세스 메모리에만 캐시 (공유 캐시에 가짜 데이터를 남기지 않음)
func fetch[T any](
	ctx context.Context,
	c *Collector,
	op, key string,
	ttl time.Duration,
	empty func(T) bool,
	get func(Source) (T, error),
) (T, error) {
	if v, ok := cacheGet[T](ctx, c.cache, key, ttl); ok {
		c.metrics.RecordCache(op, true)
		return v, nil
	}
	c.metrics.RecordCache(op, false)

	v, err := get(c.primary)
	if err == nil && !empty(v) {
		c.cache.put(ctx, key, v, ttl)
		return v, nil
	}
	if err == nil {
		err = ErrNoData
	}

	if c.fallback == nil {
		var zero T
		return zero, fmt.Errorf("%s %s: %w", op, key, err)
	}

	c.logger.WithError(err).WithFields(map[string]interface{}{
		"operation": op,
		"key":       key,
		"fallback":  c.fallback.Name(),
	}).Debug("Upstream unavailable, using fallback")
	c.metrics.RecordFallback(op)

	fv, ferr := get(c.fallback)
	if ferr != nil || empty(fv) {
		var zero T
		if ferr == nil {
			ferr = ErrNoData
		}
		return zero, fmt.Errorf("%s %s: %w", op, key, ferr)
	}
	c.cache.entries.Store(key, &CacheEntry{FetchedAt: c.cache.now(), TTL: ttl, Payload: fv})
	return fv, nil
}

// MaxSeriesDays bounds one series request (업스트림/합성 소스 모두 보호)
const MaxSeriesDays = 1000

// ErrInvalidDays is returned for a day count outside [1, MaxSeriesDays]
var ErrInvalidDays = fmt.Errorf("days must be in [1, %d]", MaxSeriesDays)

func checkDays(days int) error {
	if days < 1 || days > MaxSeriesDays {
		return fmt.Errorf("%w: got %d", ErrInvalidDays, days)
	}
	return nil
}

// GetSeries returns the last days daily bars, date ascending
func (c *Collector) GetSeries(ctx context.Context, ticker string, days int) (contracts.Series, error) {
	if err := checkDays(days); err != nil {
		return nil, err
	}
	return fetch(ctx, c, "series", redis.SeriesKey(ticker, days), c.config.TTL,
		func(s contracts.Series) bool { return !c.usableSeries(ticker, s) },
		func(src Source) (contracts.Series, error) { return src.FetchSeries(ctx, ticker, days) },
	)
}

// usableSeries rejects empty or inconsistent bars so the fallback takes over
func (c *Collector) usableSeries(ticker string, s contracts.Series) bool {
	if len(s) == 0 {
		return false
	}
	snapshot := c.quality.Check(s)
	if !snapshot.Passed {
		c.logger.WithFields(map[string]interface{}{
			"ticker": ticker,
			"score":  snapshot.QualityScore,
			"issues": snapshot.Issues,
		}).Warn("Series failed quality gate")
		return false
	}
	return true
}

// GetQuote returns the current price snapshot
func (c *Collector) GetQuote(ctx context.Context, ticker string) (*contracts.Quote, error) {
	q, err := fetch(ctx, c, "quote", redis.QuoteKey(ticker), c.config.QuoteTTL,
		func(q *contracts.Quote) bool { return q == nil || q.Price <= 0 },
		func(src Source) (*contracts.Quote, error) { return src.FetchQuote(ctx, ticker) },
	)
	if err == nil && q.Name != "" {
		c.storeNames(ctx, map[string]string{q.Ticker: q.Name})
	}
	return q, err
}

// GetOrderBook returns total ask/bid remaining quantity
func (c *Collector) GetOrderBook(ctx context.Context, ticker string) (*contracts.OrderBook, error) {
	return fetch(ctx, c, "orderbook", redis.OrderBookKey(ticker), c.config.QuoteTTL,
		func(o *contracts.OrderBook) bool { return o == nil },
		func(src Source) (*contracts.OrderBook, error) { return src.FetchOrderBook(ctx, ticker) },
	)
}

// GetFlow returns investor and program trading flow
func (c *Collector) GetFlow(ctx context.Context, ticker string) (*contracts.Flow, error) {
	return fetch(ctx, c, "flow", redis.FlowKey(ticker), c.config.TTL,
		func(f *contracts.Flow) bool { return f == nil },
		func(src Source) (*contracts.Flow, error) { return src.FetchFlow(ctx, ticker) },
	)
}

// GetIndex returns the last days index bars
func (c *Collector) GetIndex(ctx context.Context, code string, days int) (contracts.Series, error) {
	if err := checkDays(days); err != nil {
		return nil, err
	}
	return fetch(ctx, c, "index", redis.IndexKey(code, days), c.config.TTL,
		func(s contracts.Series) bool { return len(s) == 0 },
		func(src Source) (contracts.Series, error) { return src.FetchIndex(ctx, code, days) },
	)
}

// Listings returns the raw market screen and refreshes the name cache
func (c *Collector) Listings(ctx context.Context) ([]contracts.Listing, error) {
	listings, err := fetch(ctx, c, "listings", redis.ListingsKey(c.now().Format("20060102")), c.config.TTL,
		func(l []contracts.Listing) bool { return len(l) == 0 },
		func(src Source) ([]contracts.Listing, error) { return src.FetchListings(ctx) },
	)
	if err != nil {
		return nil, err
	}
	c.rememberNames(ctx, listings)
	return listings, nil
}

// BuildUniverse filters listings with the default criteria plus the given limits
func (c *Collector) BuildUniverse(ctx context.Context, minMarketCap int64, topRank int) (*s1_universe.Universe, error) {
	listings, err := c.Listings(ctx)
	if err != nil {
		return nil, err
	}

	universe := s1_universe.NewBuilder(c.config.Universe).
		WithLimits(&minMarketCap, &topRank).
		Build(listings)

	c.logger.WithFields(map[string]interface{}{
		"listings": len(listings),
		"selected": universe.TotalCount,
		"excluded": len(universe.Excluded),
	}).Info("Universe filtered")

	return universe, nil
}

// GetUniverse returns the filtered listings ranked by turnover
func (c *Collector) GetUniverse(ctx context.Context, minMarketCap int64, topRank int) ([]contracts.Listing, error) {
	universe, err := c.BuildUniverse(ctx, minMarketCap, topRank)
	if err != nil {
		return nil, err
	}
	return universe.Listings, nil
}

// GetVolumeProfile returns the price-binned volume of the last days bars
func (c *Collector) GetVolumeProfile(ctx context.Context, ticker string, days, bins int) (contracts.VolumeProfile, error) {
	if bins <= 0 {
		bins = indicators.DefaultProfileBins
	}
	series, err := c.GetSeries(ctx, ticker, days)
	if err != nil {
		return nil, err
	}
	return indicators.VolumeProfile(series, bins), nil
}

// GetSupplyDemand summarizes flow against the current day volume
func (c *Collector) GetSupplyDemand(ctx context.Context, ticker string) (*contracts.SupplyDemand, error) {
	flow, err := c.GetFlow(ctx, ticker)
	if err != nil {
		return nil, err
	}

	var volume int64
	if quote, err := c.GetQuote(ctx, ticker); err == nil {
		volume = quote.Volume
	} else {
		c.logger.WithError(err).WithField("ticker", ticker).Debug("Quote unavailable for acceleration")
	}

	return BuildSupplyDemand(flow, volume), nil
}

// Name resolves a display name: memory → name store → universe fetch → ticker.
// 실패하지 않음
func (c *Collector) Name(ctx context.Context, ticker string) string {
	if name, ok := c.cachedName(ticker); ok {
		return name
	}

	if stored, err := c.names.Load(ctx); err != nil {
		c.logger.WithError(err).Debug("Name store reload failed")
	} else {
		c.nameMu.Lock()
		for k, v := range stored {
			c.nameCache[k] = v
		}
		c.nameMu.Unlock()
		if name, ok := c.cachedName(ticker); ok {
			return name
		}
	}

	if _, err := c.Listings(ctx); err != nil {
		c.logger.WithError(err).WithField("ticker", ticker).Debug("Universe fetch for name failed")
	}
	if name, ok := c.cachedName(ticker); ok {
		return name
	}
	return ticker
}

func (c *Collector) cachedName(ticker string) (string, bool) {
	c.nameMu.RLock()
	defer c.nameMu.RUnlock()
	name, ok := c.nameCache[ticker]
	return name, ok
}

// rememberNames records the names carried by a listings screen
func (c *Collector) rememberNames(ctx context.Context, listings []contracts.Listing) {
	names := make(map[string]string, len(listings))
	for _, l := range listings {
		names[l.Ticker] = l.Name
	}
	c.storeNames(ctx, names)
}

// storeNames updates the process map and persists only changed names.
// 종목명을 주는 모든 조회(유니버스, 시세)가 여기로 모임
func (c *Collector) storeNames(ctx context.Context, names map[string]string) {
	changed := make(map[string]string)

	c.nameMu.Lock()
	for ticker, name := range names {
		if ticker == "" || name == "" {
			continue
		}
		if c.nameCache[ticker] != name {
			c.nameCache[ticker] = name
			changed[ticker] = name
		}
	}
	c.nameMu.Unlock()

	if len(changed) == 0 {
		return
	}
	if err := c.names.Save(ctx, changed); err != nil {
		c.logger.WithError(err).WithField("count", len(changed)).Warn("Failed to persist ticker names")
	}
}

// ClearCache drops every cached entry (강제 재수집)
func (c *Collector) ClearCache() {
	c.cache.Clear()
	c.logger.Info("Collector cache cleared")
}

// PurgeExpired removes expired entries
func (c *Collector) PurgeExpired() int {
	n := c.cache.PurgeExpired()
	if n > 0 {
		c.logger.WithField("purged", n).Debug("Expired cache entries purged")
	}
	return n
}
