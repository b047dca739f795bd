// Package collectortest provides an in-memory collector.MarketData for tests.
package collectortest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/indicators"
	"github.com/wonny/quantscan/internal/s0_data/collector"
	"github.com/wonny/quantscan/internal/s1_universe"
)

// Fake serves canned data. Missing entries answer collector.ErrNoData.
type Fake struct {
	mu sync.RWMutex

	Series   map[string]contracts.Series
	Indexes  map[string]contracts.Series
	Quotes   map[string]*contracts.Quote
	Books    map[string]*contracts.OrderBook
	Flows    map[string]*contracts.Flow
	Listings []contracts.Listing
	Names    map[string]string

	// Failing tickers error on every call
	Failing map[string]error
	// Delay is slept (or ctx-cancelled) before each series fetch
	Delay time.Duration

	seriesCalls atomic.Int64
	flowCalls   atomic.Int64
}

var _ collector.MarketData = (*Fake)(nil)

// New returns an empty fake
func New() *Fake {
	return &Fake{
		Series:  make(map[string]contracts.Series),
		Indexes: make(map[string]contracts.Series),
		Quotes:  make(map[string]*contracts.Quote),
		Books:   make(map[string]*contracts.OrderBook),
		Flows:   make(map[string]*contracts.Flow),
		Names:   make(map[string]string),
		Failing: make(map[string]error),
	}
}

// SetSeries stores bars for ticker
func (f *Fake) SetSeries(ticker string, s contracts.Series) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Series[ticker] = s
}

// SetIndex stores index bars
func (f *Fake) SetIndex(code string, s contracts.Series) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Indexes[code] = s
}

// SetFlow stores flow for ticker
func (f *Fake) SetFlow(ticker string, flow *contracts.Flow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Flows[ticker] = flow
}

// SeriesCalls counts GetSeries invocations
func (f *Fake) SeriesCalls() int64 { return f.seriesCalls.Load() }

// FlowCalls counts GetFlow invocations (GetSupplyDemand included)
func (f *Fake) FlowCalls() int64 { return f.flowCalls.Load() }

func (f *Fake) failure(ticker string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.Failing[ticker]
}

// GetSeries implements collector.MarketData
func (f *Fake) GetSeries(ctx context.Context, ticker string, days int) (contracts.Series, error) {
	f.seriesCalls.Add(1)
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.failure(ticker); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.Series[ticker]
	if !ok {
		return nil, fmt.Errorf("series %s: %w", ticker, collector.ErrNoData)
	}
	return s.Tail(days), nil
}

// GetQuote implements collector.MarketData; without a canned quote the last bar is used
func (f *Fake) GetQuote(ctx context.Context, ticker string) (*contracts.Quote, error) {
	if err := f.failure(ticker); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if q, ok := f.Quotes[ticker]; ok {
		return q, nil
	}
	if s, ok := f.Series[ticker]; ok && len(s) > 0 {
		last := s.Last()
		return &contracts.Quote{Ticker: ticker, Price: last.Close, Volume: last.Volume}, nil
	}
	return nil, fmt.Errorf("quote %s: %w", ticker, collector.ErrNoData)
}

// GetOrderBook implements collector.MarketData
func (f *Fake) GetOrderBook(ctx context.Context, ticker string) (*contracts.OrderBook, error) {
	if err := f.failure(ticker); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if b, ok := f.Books[ticker]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("orderbook %s: %w", ticker, collector.ErrNoData)
}

// GetFlow implements collector.MarketData
func (f *Fake) GetFlow(ctx context.Context, ticker string) (*contracts.Flow, error) {
	f.flowCalls.Add(1)
	if err := f.failure(ticker); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if fl, ok := f.Flows[ticker]; ok {
		return fl, nil
	}
	return nil, fmt.Errorf("flow %s: %w", ticker, collector.ErrNoData)
}

// GetUniverse implements collector.MarketData with the default universe rules
func (f *Fake) GetUniverse(ctx context.Context, minMarketCap int64, topRank int) ([]contracts.Listing, error) {
	f.mu.RLock()
	listings := append([]contracts.Listing(nil), f.Listings...)
	f.mu.RUnlock()
	if len(listings) == 0 {
		return nil, fmt.Errorf("universe: %w", collector.ErrNoData)
	}
	u := s1_universe.NewBuilder(s1_universe.Config{}).WithLimits(&minMarketCap, &topRank).Build(listings)
	return u.Listings, nil
}

// GetIndex implements collector.MarketData
func (f *Fake) GetIndex(ctx context.Context, code string, days int) (contracts.Series, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.Indexes[code]
	if !ok {
		return nil, fmt.Errorf("index %s: %w", code, collector.ErrNoData)
	}
	return s.Tail(days), nil
}

// GetVolumeProfile implements collector.MarketData
func (f *Fake) GetVolumeProfile(ctx context.Context, ticker string, days, bins int) (contracts.VolumeProfile, error) {
	s, err := f.GetSeries(ctx, ticker, days)
	if err != nil {
		return nil, err
	}
	return indicators.VolumeProfile(s, bins), nil
}

// GetSupplyDemand implements collector.MarketData
func (f *Fake) GetSupplyDemand(ctx context.Context, ticker string) (*contracts.SupplyDemand, error) {
	flow, err := f.GetFlow(ctx, ticker)
	if err != nil {
		return nil, err
	}
	var volume int64
	if q, err := f.GetQuote(ctx, ticker); err == nil {
		volume = q.Volume
	}
	return collector.BuildSupplyDemand(flow, volume), nil
}

// Name implements collector.MarketData
func (f *Fake) Name(ctx context.Context, ticker string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if n, ok := f.Names[ticker]; ok {
		return n
	}
	return ticker
}
