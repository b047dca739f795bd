package s2_signals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/s0_data/collector/collectortest"
	"github.com/wonny/quantscan/internal/strategyconfig"
	"github.com/wonny/quantscan/pkg/logger"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// flatBars builds n bars closing at price with a ±1% range
func flatBars(n int, price float64, volume int64) contracts.Series {
	s := make(contracts.Series, n)
	for i := range s {
		s[i] = contracts.PriceBar{
			Date:   day0.AddDate(0, 0, i),
			Open:   price,
			High:   price * 1.01,
			Low:    price * 0.99,
			Close:  price,
			Volume: volume,
		}
	}
	return s
}

func fromCloses(closes []float64, volume int64) contracts.Series {
	s := make(contracts.Series, len(closes))
	for i, c := range closes {
		s[i] = contracts.PriceBar{
			Date:   day0.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: volume,
		}
	}
	return s
}

func appendBar(s contracts.Series, bar contracts.PriceBar) contracts.Series {
	bar.Date = day0.AddDate(0, 0, len(s))
	return append(s, bar)
}

// boxBreakoutSeries: 79 bars inside 100~110, then a close at 115 on 5x volume
func boxBreakoutSeries() contracts.Series {
	s := make(contracts.Series, 0, 80)
	for i := 0; i < 79; i++ {
		s = appendBar(s, contracts.PriceBar{Open: 105, High: 110, Low: 100, Close: 105, Volume: 1000})
	}
	return appendBar(s, contracts.PriceBar{Open: 108, High: 116, Low: 108, Close: 115, Volume: 5000})
}

func newTestEngine(data *collectortest.Fake) *Engine {
	return NewEngine(data, logger.NewNop())
}

func TestEngine_InsufficientHistory(t *testing.T) {
	data := collectortest.New()
	data.SetSeries("SHORT", flatBars(20, 10000, 1000))
	engine := newTestEngine(data)

	for _, kind := range contracts.AllStrategies {
		t.Run(string(kind), func(t *testing.T) {
			sig, err := engine.Evaluate(context.Background(), kind, "SHORT", strategyconfig.Default())
			require.NoError(t, err)
			assert.False(t, sig.Triggered)
			assert.Zero(t, sig.Confidence)
			assert.Equal(t, kind, sig.Strategy)
			assert.Equal(t, contracts.VerdictWatch, sig.Verdict)
		})
	}
}

func TestEngine_UnknownStrategy(t *testing.T) {
	engine := newTestEngine(collectortest.New())

	_, err := engine.Evaluate(context.Background(), "momentum", "005930", strategyconfig.Default())
	assert.ErrorIs(t, err, contracts.ErrUnknownStrategy)
}

func TestEngine_ScanTickerSkipsFailures(t *testing.T) {
	data := collectortest.New()
	data.Failing["BROKEN"] = errors.New("upstream down")
	engine := newTestEngine(data)

	signals := engine.ScanTicker(context.Background(), "BROKEN", strategyconfig.Default(), nil)
	assert.Empty(t, signals)
}

func TestEngine_ScanTickerNotifyReportsEveryStrategy(t *testing.T) {
	data := collectortest.New()
	data.Failing["BROKEN"] = errors.New("upstream down")
	engine := newTestEngine(data)

	var done []contracts.StrategyKind
	kinds := []contracts.StrategyKind{contracts.StrategyBreakout, "momentum", contracts.StrategyPullback}
	engine.ScanTickerNotify(context.Background(), "BROKEN", strategyconfig.Default(), kinds,
		func(k contracts.StrategyKind) { done = append(done, k) })

	assert.Equal(t, kinds, done, "failed and unknown strategies still count as finished")
}

func TestEngine_ScanTickerKeepsTriggeredOnly(t *testing.T) {
	data := collectortest.New()
	data.SetSeries("BOX", boxBreakoutSeries())
	data.Books["BOX"] = &contracts.OrderBook{Ticker: "BOX", TotalAsk: 3000, TotalBid: 1000, AskBidRatio: 3}
	data.SetFlow("BOX", &contracts.Flow{Ticker: "BOX", ProgramNet: 100})
	data.Names["BOX"] = "박스전자"
	engine := newTestEngine(data)

	signals := engine.ScanTicker(context.Background(), "BOX", strategyconfig.Default(), nil)
	require.NotEmpty(t, signals)

	kinds := make(map[contracts.StrategyKind]bool)
	for _, sig := range signals {
		assert.True(t, sig.Triggered)
		assert.Equal(t, "박스전자", sig.Name)
		kinds[sig.Strategy] = true
	}
	assert.True(t, kinds[contracts.StrategyBreakout])

	only := engine.ScanTicker(context.Background(), "BOX", strategyconfig.Default(),
		[]contracts.StrategyKind{contracts.StrategyPullback})
	for _, sig := range only {
		assert.Equal(t, contracts.StrategyPullback, sig.Strategy)
	}
}

func TestWon(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{72500.4, "72,500"},
		{1234567, "1,234,567"},
		{-5000, "-5,000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, won(tt.in))
	}
}

func TestATRStopBelowEntry(t *testing.T) {
	risk := strategyconfig.Default().Risk

	// 고가=저가=종가: TR=0, ATR=0
	flat := make(contracts.Series, 30)
	for i := range flat {
		flat[i] = contracts.PriceBar{Date: day0.AddDate(0, 0, i), Open: 10_000, High: 10_000, Low: 10_000, Close: 10_000, Volume: 1000}
	}

	tests := []struct {
		name   string
		series contracts.Series
		entry  float64
		want   float64
	}{
		{"zero ATR clamps to 1% below", flat, 10_000, 9_900},
		{"tiny entry still strictly below", flat, 50, 49},
		// ±1% 범위: ATR 200, 2x = 400
		{"wide ATR keeps ATR stop", flatBars(30, 10_000, 1000), 10_000, 9_600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stop := atrStop(tt.series, tt.entry, risk)
			assert.Equal(t, tt.want, stop)
			assert.Less(t, stop, tt.entry)
		})
	}
}

func TestFibTargetsStayAboveEntry(t *testing.T) {
	series := flatBars(40, 100, 1000)

	t1, t2 := fibTargets(series, 200, 1.05, 1.10)
	assert.Equal(t, 210.0, t1)
	assert.Equal(t, 220.0, t2)

	// 데이터 부족 → 배수 폴백
	t1, t2 = fibTargets(series[:10], 100, 1.07, 1.15)
	assert.Equal(t, 107.0, t1)
	assert.Equal(t, 115.0, t2)
}
