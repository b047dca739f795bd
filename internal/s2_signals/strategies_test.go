package s2_signals

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/indicators"
	"github.com/wonny/quantscan/internal/s0_data/collector"
	"github.com/wonny/quantscan/internal/s0_data/collector/collectortest"
	"github.com/wonny/quantscan/internal/strategyconfig"
	"github.com/wonny/quantscan/pkg/logger"
)

func evaluate(t *testing.T, ev Evaluator, ticker string) *contracts.Signal {
	t.Helper()
	sig, err := ev.Evaluate(context.Background(), ticker, strategyconfig.Default())
	require.NoError(t, err)
	require.NotNil(t, sig)
	return sig
}

func assertPriceOrder(t *testing.T, sig *contracts.Signal) {
	t.Helper()
	assert.Less(t, sig.StopLoss, sig.Entry1)
	assert.Less(t, sig.Entry1, sig.Target1)
	assert.Less(t, sig.Target1, sig.Target2)
}

func TestBreakout_BoxBreakoutWithAllConfirmations(t *testing.T) {
	data := collectortest.New()
	data.SetSeries("BOX", boxBreakoutSeries())
	data.Books["BOX"] = &contracts.OrderBook{Ticker: "BOX", AskBidRatio: 3}
	data.SetFlow("BOX", &contracts.Flow{Ticker: "BOX", ProgramNet: 100})

	sig := evaluate(t, NewBreakoutStrategy(data, logger.NewNop()), "BOX")

	assert.True(t, sig.Triggered)
	assert.Equal(t, contracts.VerdictApproved, sig.Verdict)
	assert.Equal(t, 100.0, sig.Confidence)
	assert.Equal(t, 115.0, sig.CurrentPrice)
	assert.Equal(t, 110.0, sig.Entry1)
	assert.Equal(t, 111.0, sig.Entry2)
	assert.Equal(t, 115.0, sig.Target1)
	assert.Equal(t, 120.0, sig.Target2)
	// ATR 손절(90)보다 박스 하단(100)이 높음
	assert.Equal(t, 100.0, sig.StopLoss)
	assert.Equal(t, 0.5, sig.RiskReward)
	assert.Len(t, sig.Reasons, 4)
	assert.Equal(t, 4.17, sig.Details["volume_surge"])
}

func TestBreakout_NearTopAloneIsNotEnough(t *testing.T) {
	data := collectortest.New()
	s := boxBreakoutSeries()
	s[len(s)-1].Close = 106
	s[len(s)-1].High = 107
	s[len(s)-1].Low = 104
	s[len(s)-1].Volume = 1000
	data.SetSeries("NEAR", s)

	sig := evaluate(t, NewBreakoutStrategy(data, logger.NewNop()), "NEAR")

	assert.False(t, sig.Triggered)
	assert.Equal(t, 15.0, sig.Confidence)
	assert.Zero(t, sig.Entry1, "untriggered signals carry no prices")
	assert.Equal(t, contracts.VerdictWatch, sig.Verdict)
}

func TestBreakout_InsideBoxStops(t *testing.T) {
	data := collectortest.New()
	s := boxBreakoutSeries()
	s[len(s)-1].Close = 101
	data.SetSeries("LOW", s)

	sig := evaluate(t, NewBreakoutStrategy(data, logger.NewNop()), "LOW")
	assert.False(t, sig.Triggered)
	assert.Zero(t, sig.Confidence)
	assert.Empty(t, sig.Reasons)
}

func TestGoldenCross_CrossTodayWithRSIBreak(t *testing.T) {
	closes := make([]float64, 0, 36)
	for i := 0; i < 30; i++ {
		closes = append(closes, 100)
	}
	for i := 0; i < 5; i++ {
		closes = append(closes, 90)
	}
	closes = append(closes, 130)

	data := collectortest.New()
	data.SetSeries("GC", fromCloses(closes, 1000))

	sig := evaluate(t, NewGoldenCrossStrategy(data, logger.NewNop()), "GC")

	// 교차 40 + 기울기 음수 5 + RSI 돌파 35
	assert.True(t, sig.Triggered)
	assert.Equal(t, 80.0, sig.Confidence)
	assert.Equal(t, contracts.VerdictWatch, sig.Verdict, "falling MA20 blocks approval")
	assert.Equal(t, 130.0, sig.Entry1)
	assert.Equal(t, 95.0, sig.Entry2)
	assert.Less(t, sig.Details["ma_slope"].(float64), 0.0)
	assertPriceOrder(t, sig)
}

func TestGoldenCross_NoCross(t *testing.T) {
	data := collectortest.New()
	data.SetSeries("UP", fromCloses(rampCloses(60, 100, 1), 1000))

	sig := evaluate(t, NewGoldenCrossStrategy(data, logger.NewNop()), "UP")
	assert.False(t, sig.Triggered)
	assert.Zero(t, sig.Confidence)
}

func TestBottomEscape_BreakoutWithAccumulation(t *testing.T) {
	s := flatBars(40, 100, 1000)
	s = appendBar(s, contracts.PriceBar{Open: 100, High: 111, Low: 100, Close: 110, Volume: 5000})

	data := collectortest.New()
	data.SetSeries("BE", s)

	sig := evaluate(t, NewBottomEscapeStrategy(data, logger.NewNop()), "BE")

	assert.True(t, sig.Triggered)
	assert.Equal(t, 100.0, sig.Confidence)
	assert.Equal(t, contracts.VerdictApproved, sig.Verdict)
	assert.Equal(t, false, sig.Details["resistance_wall"])
	assert.Equal(t, 1, sig.Details["accumulation_count"])
	// MA20 = 100.5
	assert.Equal(t, 101.0, sig.Entry1)
	assert.Equal(t, 98.0, sig.Entry2)
}

func TestBottomEscape_BelowMAStops(t *testing.T) {
	data := collectortest.New()
	data.SetSeries("DOWN", fromCloses(rampCloses(60, 200, -1), 1000))

	sig := evaluate(t, NewBottomEscapeStrategy(data, logger.NewNop()), "DOWN")
	assert.False(t, sig.Triggered)
	assert.Zero(t, sig.Confidence)
}

func TestCrossedTodayAndBelowWithin(t *testing.T) {
	closes := []float64{10, 10, 9, 11, 12}
	ma := []float64{10, 10, 10, 10, 10}

	assert.False(t, crossedToday(closes, ma))
	assert.True(t, crossedToday(closes[:4], ma[:4]))
	assert.True(t, belowWithin(closes, ma, 3))
	assert.False(t, belowWithin(closes, ma, 1))
}

// pullbackSeries: bullish reference candle (center 105) then a quiet pullback to 104
func pullbackSeries() contracts.Series {
	s := flatBars(32, 100, 1000)
	s = appendBar(s, contracts.PriceBar{Open: 100, High: 112, Low: 98, Close: 110, Volume: 1000})
	for _, vol := range []int64{1000, 1000, 1000, 1000, 300, 200, 100} {
		s = appendBar(s, contracts.PriceBar{Open: 104, High: 105, Low: 103, Close: 104, Volume: vol})
	}
	return s
}

func TestPullback(t *testing.T) {
	tests := []struct {
		name         string
		holdings     []float64
		wantScore    float64
		wantApproved bool
	}{
		{
			name:         "institution holds",
			holdings:     []float64{900, 1000, 1000, 1010, 1000, 1005},
			wantScore:    100,
			wantApproved: true,
		},
		{
			name:         "institution dumping",
			holdings:     []float64{2000, 1800, 1500, 1200, 900},
			wantScore:    75,
			wantApproved: true,
		},
		{
			name:         "no holdings history",
			wantScore:    75,
			wantApproved: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := collectortest.New()
			data.SetSeries("PB", pullbackSeries())
			data.SetFlow("PB", &contracts.Flow{Ticker: "PB", InstitutionHoldings: tt.holdings})

			sig := evaluate(t, NewPullbackStrategy(data, logger.NewNop()), "PB")

			assert.True(t, sig.Triggered)
			assert.Equal(t, tt.wantScore, sig.Confidence)
			assert.Equal(t, tt.wantApproved, sig.Verdict == contracts.VerdictApproved)
			assert.Equal(t, 105.0, sig.Entry1)
			assert.Equal(t, 103.0, sig.Entry2)
			assert.Contains(t, sig.Reasons[0], "기준봉 중심값(105원)")
		})
	}
}

func TestPullback_BelowSupportStops(t *testing.T) {
	s := pullbackSeries()
	s[len(s)-1].Close = 95
	s[len(s)-1].Low = 94

	data := collectortest.New()
	data.SetSeries("PB", s)

	sig := evaluate(t, NewPullbackStrategy(data, logger.NewNop()), "PB")
	assert.False(t, sig.Triggered)
	assert.Zero(t, sig.Confidence)
}

func TestHoldingsSteady(t *testing.T) {
	assert.True(t, holdingsSteady([]float64{100, 101, 102, 100, 101}, 0.05))
	assert.False(t, holdingsSteady([]float64{100, 120, 102, 100, 101}, 0.05))
	assert.False(t, holdingsSteady([]float64{100, 100}, 0.05), "fewer than five points")
	assert.False(t, holdingsSteady([]float64{0, 0, 0, 0, 0}, 0.05), "zero mean")
}

// acceleratingCloses: c = 100 + 0.0001 i² keeps MAs aligned, tight and fanning out
func acceleratingCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 0.0001*float64(i*i)
	}
	return out
}

func TestConvergence_AlignedAndDiverging(t *testing.T) {
	closes := acceleratingCloses(150)
	data := collectortest.New()
	data.SetSeries("CV", fromCloses(closes, 1000))
	data.SetIndex(collector.IndexKOSPI, fromCloses(rampCloses(30, 2500, 5), 0))

	sig := evaluate(t, NewConvergenceStrategy(data, logger.NewNop()), "CV")

	assert.True(t, sig.Triggered)
	assert.Equal(t, 100.0, sig.Confidence)
	assert.Equal(t, contracts.VerdictApproved, sig.Verdict)

	ma120 := indicators.Last(indicators.SMA(closes, 120))
	assert.GreaterOrEqual(t, sig.StopLoss, indicators.Round(ma120*0.97, 0))
	assert.Equal(t, indicators.Round(indicators.Last(indicators.SMA(closes, 20)), 0), sig.Entry2)
}

func TestConvergence_IndexUnavailableStillScores(t *testing.T) {
	data := collectortest.New()
	data.SetSeries("CV", fromCloses(acceleratingCloses(150), 1000))

	sig := evaluate(t, NewConvergenceStrategy(data, logger.NewNop()), "CV")
	assert.True(t, sig.Triggered)
	assert.Equal(t, 85.0, sig.Confidence)
}

func TestConvergence_NeedsLongestMA(t *testing.T) {
	data := collectortest.New()
	data.SetSeries("CV", fromCloses(acceleratingCloses(100), 1000))

	sig := evaluate(t, NewConvergenceStrategy(data, logger.NewNop()), "CV")
	assert.False(t, sig.Triggered)
	assert.Zero(t, sig.Confidence)
}

func rampCloses(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}
