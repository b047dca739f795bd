package s1_universe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/pkg/config"
)

func testListings() []contracts.Listing {
	return []contracts.Listing{
		{Ticker: "005930", Name: "삼성전자", MarketCap: 430e12, Turnover: 1_000e9},
		{Ticker: "000660", Name: "SK하이닉스", MarketCap: 100e12, Turnover: 1_200e9},
		{Ticker: "069500", Name: "KODEX 200", MarketCap: 6e12, Turnover: 2_000e9},
		{Ticker: "123450", Name: "미래에셋비전스팩3호", MarketCap: 200e9, Turnover: 50e9},
		{Ticker: "111110", Name: "작은회사", MarketCap: 50e9, Turnover: 900e9},
		{Ticker: "222220", Name: "중형주", MarketCap: 300e9, Turnover: 300e9},
	}
}

func TestBuilder_Build(t *testing.T) {
	builder := NewBuilder(Config{
		MinMarketCap:    100e9,
		TopRank:         2,
		ExcludeKeywords: []string{"ETF", "KODEX", "TIGER"},
		ExcludeSPAC:     true,
		ExcludeAdmin:    true,
	})

	universe := builder.Build(testListings())

	// 거래대금 내림차순 상위 2개
	assert.Equal(t, []string{"000660", "005930"}, universe.Tickers())
	assert.Equal(t, 2, universe.TotalCount)

	assert.Equal(t, "펀드형 상품 (KODEX)", universe.Excluded["069500"])
	assert.Equal(t, "SPAC", universe.Excluded["123450"])
	assert.Contains(t, universe.Excluded["111110"], "시가총액 미달")
	assert.Contains(t, universe.Excluded["222220"], "거래대금 순위 밖")
}

func TestBuilder_ZeroLimitsDisableFilters(t *testing.T) {
	builder := NewBuilder(Config{})
	universe := builder.Build(testListings())

	// 필터 미적용 시 전 종목, 거래대금 순
	require.Len(t, universe.Listings, 6)
	assert.Equal(t, "069500", universe.Listings[0].Ticker)
	assert.Empty(t, universe.Excluded)
}

func TestBuilder_WithLimits(t *testing.T) {
	base := NewBuilder(ConfigFromFilter(config.FilterConfig{
		MinMarketCap:    100e9,
		TopRank:         100,
		ExcludeKeywords: []string{"ETF", "ETN", "KODEX"},
	}))

	minCap := int64(200e9)
	top := 1
	narrowed := base.WithLimits(&minCap, &top)

	assert.Equal(t, int64(200e9), narrowed.Config().MinMarketCap)
	assert.Equal(t, 1, narrowed.Config().TopRank)

	// 원본은 변경되지 않음
	assert.Equal(t, int64(100e9), base.Config().MinMarketCap)
	assert.Equal(t, 100, base.Config().TopRank)

	same := base.WithLimits(nil, nil)
	assert.Equal(t, base.Config().TopRank, same.Config().TopRank)

	universe := narrowed.Build(testListings())
	assert.Equal(t, []string{"000660"}, universe.Tickers())
}

func TestIsSPAC(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"하나금융25호스팩", true},
		{"KB SPAC", true},
		{"신한제7호", true},
		{"삼성전자", false},
		{"현대차", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isSPAC(tt.name))
		})
	}
}

func TestMatchKeyword(t *testing.T) {
	keywords := []string{"ETF", "TIGER", "SOL"}
	assert.Equal(t, "TIGER", matchKeyword("TIGER 미국S&P500", keywords))
	assert.Equal(t, "SOL", matchKeyword("sol 조선TOP3", keywords))
	assert.Equal(t, "", matchKeyword("삼성전자", keywords))
}
