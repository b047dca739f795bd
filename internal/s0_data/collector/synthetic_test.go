package collector

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantscan/internal/contracts"
)

// 2024-03-09 is a Saturday
var fixedNow = func() time.Time { return time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC) }

func TestSyntheticSeries_Deterministic(t *testing.T) {
	ctx := context.Background()
	a, err := NewSyntheticSource().WithClock(fixedNow).FetchSeries(ctx, "005930", 120)
	require.NoError(t, err)
	b, err := NewSyntheticSource().WithClock(fixedNow).FetchSeries(ctx, "005930", 120)
	require.NoError(t, err)

	assert.Equal(t, a, b)

	other, _ := NewSyntheticSource().WithClock(fixedNow).FetchSeries(ctx, "000660", 120)
	assert.NotEqual(t, a.Closes(), other.Closes())
}

func TestSyntheticSeries_Shape(t *testing.T) {
	series, err := NewSyntheticSource().WithClock(fixedNow).FetchSeries(context.Background(), "123456", 200)
	require.NoError(t, err)
	require.Len(t, series, 200)

	// 최신 봉은 기준가(50,000)에서 시작
	assert.Equal(t, 50000.0, series.Last().Close)
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), series.Last().Date)

	for i, bar := range series {
		wd := bar.Date.Weekday()
		assert.NotEqual(t, time.Saturday, wd)
		assert.NotEqual(t, time.Sunday, wd)
		if i > 0 {
			assert.True(t, bar.Date.After(series[i-1].Date), "dates ascending and unique")
		}
		assert.GreaterOrEqual(t, bar.High, bar.Close)
		assert.LessOrEqual(t, bar.Low, bar.Close)
		assert.GreaterOrEqual(t, bar.Volume, int64(500_000))
		assert.Less(t, bar.Volume, int64(5_000_000))
	}
}

func TestSyntheticSeries_RecentBarsStableAcrossLookback(t *testing.T) {
	src := NewSyntheticSource().WithClock(fixedNow)
	short, _ := src.FetchSeries(context.Background(), "005930", 30)
	long, _ := src.FetchSeries(context.Background(), "005930", 200)

	assert.Equal(t, short, long.Tail(30))

	quote, err := src.FetchQuote(context.Background(), "005930")
	require.NoError(t, err)
	assert.Equal(t, long.Last().Close, quote.Price)
}

func TestSyntheticIndex(t *testing.T) {
	src := NewSyntheticSource().WithClock(fixedNow)

	kospi, err := src.FetchIndex(context.Background(), IndexKOSPI, 30)
	require.NoError(t, err)
	kosdaq, err := src.FetchIndex(context.Background(), IndexKOSDAQ, 30)
	require.NoError(t, err)

	assert.Len(t, kospi, 30)
	assert.InDelta(t, 5950.0, kospi.Last().Close, 0.001)
	assert.InDelta(t, 5970.0, kosdaq.Last().Close, 0.001)
}

func TestSyntheticListings(t *testing.T) {
	listings, err := NewSyntheticSource().FetchListings(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 200)

	assert.Equal(t, "005930", listings[0].Ticker)
	assert.Equal(t, "삼성전자", listings[0].Name)
	assert.Equal(t, "900000", listings[10].Ticker)
	assert.Equal(t, "시뮬레이션_001", listings[10].Name)
	assert.True(t, strings.HasPrefix(listings[199].Name, "시뮬레이션_"))

	seen := make(map[string]bool)
	for _, l := range listings {
		assert.False(t, seen[l.Ticker], "duplicate ticker %s", l.Ticker)
		seen[l.Ticker] = true
		assert.Positive(t, l.MarketCap)
		assert.Positive(t, l.Turnover)
	}
}

func TestSyntheticQuoteNameMatchesListings(t *testing.T) {
	src := NewSyntheticSource()
	listings, err := src.FetchListings(context.Background())
	require.NoError(t, err)

	for _, l := range []contracts.Listing{listings[0], listings[len(listings)-1]} {
		q, err := src.FetchQuote(context.Background(), l.Ticker)
		require.NoError(t, err)
		assert.Equal(t, l.Name, q.Name, l.Ticker)
	}

	q, err := src.FetchQuote(context.Background(), "123456")
	require.NoError(t, err)
	assert.Empty(t, q.Name)
}

func TestSyntheticFlowAndOrderBook(t *testing.T) {
	src := NewSyntheticSource()
	ctx := context.Background()

	flow, err := src.FetchFlow(ctx, "005930")
	require.NoError(t, err)
	assert.Equal(t, flow.ProgramBuy-flow.ProgramSell, flow.ProgramNet)
	assert.Len(t, flow.InstitutionHoldings, 30)

	again, _ := src.FetchFlow(ctx, "005930")
	assert.Equal(t, flow, again)

	book, err := src.FetchOrderBook(ctx, "005930")
	require.NoError(t, err)
	assert.Positive(t, book.TotalBid)
	assert.InDelta(t, float64(book.TotalAsk)/float64(book.TotalBid), book.AskBidRatio, 0.01)
}

func TestBuildSupplyDemand(t *testing.T) {
	tests := []struct {
		name      string
		flow      contracts.Flow
		volume    int64
		wantCount int
		wantLabel string
	}{
		{
			name:      "calm",
			flow:      contracts.Flow{ForeignNet: 100, InstitutionNet: 100, ProgramNet: -100},
			volume:    1_000_000,
			wantCount: 2,
			wantLabel: CalmSupplyLabel,
		},
		{
			name:      "all accelerating",
			flow:      contracts.Flow{ForeignNet: 150_000, InstitutionNet: 120_000, ProgramNet: 110_000},
			volume:    1_000_000,
			wantCount: 3,
			wantLabel: "외인 3.0x 폭발, 기관 2.4x 폭발, 프로그램 2.2x 가속",
		},
		{
			name:      "selling also accelerates",
			flow:      contracts.Flow{ForeignNet: -200_000},
			volume:    1_000_000,
			wantCount: 0,
			wantLabel: "외인 4.0x 폭발",
		},
		{
			name:      "just above threshold before rounding",
			flow:      contracts.Flow{ForeignNet: 102_000},
			volume:    1_000_000,
			wantCount: 1,
			wantLabel: "외인 2.0x 폭발",
		},
		{
			name:      "zero volume treated as one",
			flow:      contracts.Flow{},
			volume:    0,
			wantCount: 0,
			wantLabel: CalmSupplyLabel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := tt.flow
			sd := BuildSupplyDemand(&flow, tt.volume)
			assert.Equal(t, tt.wantCount, sd.BuyCount)
			assert.Equal(t, tt.wantLabel, sd.Acceleration.Label)
			assert.Len(t, sd.Details, 3)
		})
	}
}

func TestBuildSupplyDemand_StoresRoundedAcceleration(t *testing.T) {
	sd := BuildSupplyDemand(&contracts.Flow{ForeignNet: 102_000, InstitutionNet: 56_000}, 1_000_000)
	assert.Equal(t, 2.0, sd.Acceleration.Foreign)
	assert.Equal(t, 1.1, sd.Acceleration.Institution)
}
