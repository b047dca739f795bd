package collector

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/external/kis"
)

// 시뮬레이션 기준가 (우량주), 나머지는 50,000원
var syntheticBasePrices = map[string]float64{
	"005930": 71000, "000660": 190000, "373220": 380000,
	"207940": 750000, "005380": 245000, "006400": 350000,
	"035420": 215000, "051910": 370000, "068270": 185000,
	"028260": 120000, "035720": 45000, "105560": 72000,
}

var syntheticBlueChips = []struct{ ticker, name string }{
	{"005930", "삼성전자"}, {"000660", "SK하이닉스"}, {"373220", "LG에너지솔루션"},
	{"207940", "삼성바이오로직스"}, {"005380", "현대차"}, {"000270", "기아"},
	{"068270", "셀트리온"}, {"035420", "NAVER"}, {"005490", "POSCO홀딩스"},
	{"035720", "카카오"},
}

const syntheticFillerCount = 190

// SyntheticSource produces deterministic, plausible market data offline.
// 같은 종목/기간이면 항상 같은 결과 (시드 = FNV(종목코드))
type SyntheticSource struct {
	now func() time.Time
}

// NewSyntheticSource creates a SyntheticSource anchored at the wall clock
func NewSyntheticSource() *SyntheticSource {
	return &SyntheticSource{now: time.Now}
}

// WithClock pins the last generated business day (tests)
func (s *SyntheticSource) WithClock(now func() time.Time) *SyntheticSource {
	s.now = now
	return s
}

func (s *SyntheticSource) Name() string { return "synthetic" }

// seeded returns a PRNG keyed by the ticker and a purpose tag
func seeded(parts ...string) *rand.Rand {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// businessDays returns n weekdays ending at (or before) end, ascending
func businessDays(end time.Time, n int) []time.Time {
	day := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := n - 1; i >= 0; {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out[i] = day
			i--
		}
		day = day.AddDate(0, 0, -1)
	}
	return out
}

func uniform(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

// FetchSeries generates a σ 2% random walk of business-day bars.
// 최신 봉에서 과거로 생성하므로 기간이 달라도 최근 구간은 동일
func (s *SyntheticSource) FetchSeries(_ context.Context, ticker string, days int) (contracts.Series, error) {
	if days <= 0 {
		return contracts.Series{}, nil
	}
	base, ok := syntheticBasePrices[ticker]
	if !ok {
		base = 50000
	}

	r := seeded("series", ticker)
	dates := businessDays(s.now(), days)

	series := make(contracts.Series, days)
	price := base
	for i := days - 1; i >= 0; i-- {
		if i < days-1 {
			price /= 1 + r.NormFloat64()*0.02
		}
		high := price * (1 + uniform(r, 0, 0.03))
		low := price * (1 - uniform(r, 0, 0.03))
		open := price * (1 + uniform(r, -0.015, 0.015))
		volume := int64(500_000 + r.IntN(4_500_000))

		series[i] = contracts.PriceBar{
			Date:     dates[i],
			Open:     math.Trunc(open),
			High:     math.Trunc(math.Max(high, math.Max(open, price))),
			Low:      math.Trunc(math.Min(low, math.Min(open, price))),
			Close:    math.Trunc(price),
			Volume:   volume,
			Turnover: int64(price * float64(volume)),
		}
	}
	return series, nil
}

// FetchIndex generates a σ 0.5% index walk (KOSPI 5,950 / KOSDAQ 5,970 기준)
func (s *SyntheticSource) FetchIndex(_ context.Context, code string, days int) (contracts.Series, error) {
	if days <= 0 {
		return contracts.Series{}, nil
	}
	base := 5970.0
	if code == IndexKOSPI {
		base = 5950.0
	}

	r := seeded("index", code)
	dates := businessDays(s.now(), days)

	series := make(contracts.Series, days)
	level := base
	for i := days - 1; i >= 0; i-- {
		if i < days-1 {
			level /= 1 + r.NormFloat64()*0.005
		}
		open := level * (1 + uniform(r, -0.003, 0.003))
		series[i] = contracts.PriceBar{
			Date:  dates[i],
			Open:  open,
			High:  math.Max(level*(1+uniform(r, 0, 0.005)), open),
			Low:   math.Min(level*(1-uniform(r, 0, 0.005)), open),
			Close: level,
		}
	}
	return series, nil
}

// FetchQuote derives the snapshot from the last two synthetic bars
func (s *SyntheticSource) FetchQuote(ctx context.Context, ticker string) (*contracts.Quote, error) {
	bars, _ := s.FetchSeries(ctx, ticker, 2)
	last, prev := bars[1], bars[0]

	change := 0.0
	if prev.Close > 0 {
		change = math.Round((last.Close-prev.Close)/prev.Close*10000) / 100
	}
	r := seeded("strength", ticker)

	return &contracts.Quote{
		Ticker:    ticker,
		Name:      syntheticName(ticker),
		Price:     last.Close,
		ChangePct: change,
		Volume:    last.Volume,
		Turnover:  last.Turnover,
		Open:      last.Open,
		High:      last.High,
		Low:       last.Low,
		Strength:  math.Round(uniform(r, 60, 160)*100) / 100,
	}, nil
}

// FetchOrderBook generates remaining ask/bid quantities
func (s *SyntheticSource) FetchOrderBook(_ context.Context, ticker string) (*contracts.OrderBook, error) {
	r := seeded("orderbook", ticker)
	ask := int64(10_000 + r.IntN(490_000))
	bid := int64(10_000 + r.IntN(490_000))
	return kis.NewOrderBook(ticker, ask, bid), nil
}

// FetchFlow generates investor/program net flow and 30 days of institution holdings
func (s *SyntheticSource) FetchFlow(_ context.Context, ticker string) (*contracts.Flow, error) {
	r := seeded("flow", ticker)

	buy := int64(r.IntN(1_000_000))
	sell := int64(r.IntN(1_000_000))
	flow := &contracts.Flow{
		Ticker:         ticker,
		ForeignNet:     int64(r.IntN(1_000_000)) - 500_000,
		InstitutionNet: int64(r.IntN(1_000_000)) - 500_000,
		ForeignOwnPct:  math.Round(uniform(r, 5, 55)*100) / 100,
		ProgramBuy:     buy,
		ProgramSell:    sell,
		ProgramNet:     buy - sell,
	}

	holding := float64(1_000_000 + r.IntN(9_000_000))
	flow.InstitutionHoldings = make([]float64, 30)
	for i := range flow.InstitutionHoldings {
		holding *= 1 + r.NormFloat64()*0.01
		flow.InstitutionHoldings[i] = math.Trunc(holding)
	}
	return flow, nil
}

// syntheticName matches the names FetchListings assigns
func syntheticName(ticker string) string {
	for _, bc := range syntheticBlueChips {
		if bc.ticker == ticker {
			return bc.name
		}
	}
	if n, err := strconv.Atoi(ticker); err == nil && len(ticker) == 6 && n >= 900000 && n < 900000+syntheticFillerCount {
		return fmt.Sprintf("시뮬레이션_%03d", n-900000+1)
	}
	return ""
}

// FetchListings returns 10 blue chips plus 190 filler tickers (900000~)
func (s *SyntheticSource) FetchListings(_ context.Context) ([]contracts.Listing, error) {
	listings := make([]contracts.Listing, 0, len(syntheticBlueChips)+syntheticFillerCount)

	for _, bc := range syntheticBlueChips {
		r := seeded("listing", bc.ticker)
		listings = append(listings, contracts.Listing{
			Ticker:    bc.ticker,
			Name:      bc.name,
			Market:    "KOSPI",
			Close:     float64(50_000 + r.IntN(750_000)),
			MarketCap: int64(50+r.IntN(450)) * 1_000_000_000_000,
			Turnover:  int64(100+r.IntN(900)) * 1_000_000_000,
			Volume:    int64(500_000 + r.IntN(4_500_000)),
		})
	}

	for i := 0; i < syntheticFillerCount; i++ {
		ticker := fmt.Sprintf("%06d", 900000+i)
		r := seeded("listing", ticker)
		listings = append(listings, contracts.Listing{
			Ticker:    ticker,
			Name:      fmt.Sprintf("시뮬레이션_%03d", i+1),
			Market:    "KOSDAQ",
			Close:     float64(1_000 + r.IntN(99_000)),
			MarketCap: int64(1+r.IntN(99)) * 1_000_000_000_000,
			Turnover:  int64(1+r.IntN(99)) * 1_000_000_000,
			Volume:    int64(10_000 + r.IntN(990_000)),
		})
	}

	return listings, nil
}
