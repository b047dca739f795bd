package collector

import (
	"context"

	"github.com/wonny/quantscan/internal/contracts"
)

// Source is one upstream market data adapter.
// 구현체: LiveSource (KIS/KRX/Naver), SyntheticSource (결정적 가짜 데이터)
type Source interface {
	Name() string
	FetchSeries(ctx context.Context, ticker string, days int) (contracts.Series, error)
	FetchQuote(ctx context.Context, ticker string) (*contracts.Quote, error)
	FetchOrderBook(ctx context.Context, ticker string) (*contracts.OrderBook, error)
	FetchFlow(ctx context.Context, ticker string) (*contracts.Flow, error)
	FetchListings(ctx context.Context) ([]contracts.Listing, error)
	FetchIndex(ctx context.Context, code string, days int) (contracts.Series, error)
}

// MarketData is the cached read contract every downstream stage consumes
// ⭐ SSOT: 수집기 → 지표/전략/리스크/등급 데이터 접근
type MarketData interface {
	GetSeries(ctx context.Context, ticker string, days int) (contracts.Series, error)
	GetQuote(ctx context.Context, ticker string) (*contracts.Quote, error)
	GetOrderBook(ctx context.Context, ticker string) (*contracts.OrderBook, error)
	GetFlow(ctx context.Context, ticker string) (*contracts.Flow, error)
	// GetUniverse filters listings; 0 disables the cap floor / rank ceiling
	GetUniverse(ctx context.Context, minMarketCap int64, topRank int) ([]contracts.Listing, error)
	GetIndex(ctx context.Context, code string, days int) (contracts.Series, error)
	GetVolumeProfile(ctx context.Context, ticker string, days, bins int) (contracts.VolumeProfile, error)
	GetSupplyDemand(ctx context.Context, ticker string) (*contracts.SupplyDemand, error)
	Name(ctx context.Context, ticker string) string
}

// Index codes used by the regime classifier
const (
	IndexKOSPI  = "1001"
	IndexKOSDAQ = "2001"
)
