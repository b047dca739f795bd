package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/s0_data/collector"
	"github.com/wonny/quantscan/internal/s0_data/collector/collectortest"
	"github.com/wonny/quantscan/pkg/config"
	"github.com/wonny/quantscan/pkg/logger"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		MarketMAPeriod:    5,
		BearMaxWeight:     0.3,
		BearStrategy:      "bottom_escape",
		ATRPeriod:         14,
		ATRMultiplier:     2.0,
		MaxPositionWeight: 0.1,
		MaxPositions:      10,
		StopMAPeriod:      20,
	}
}

func series(closes ...float64) contracts.Series {
	s := make(contracts.Series, len(closes))
	for i, c := range closes {
		s[i] = contracts.PriceBar{Date: day0.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return s
}

func ramp(n int, start, step float64) contracts.Series {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = start + step*float64(i)
	}
	return series(closes...)
}

func TestClassifyMarket(t *testing.T) {
	tests := []struct {
		name       string
		kospi      contracts.Series
		kosdaq     contracts.Series
		wantPhase  contracts.MarketPhase
		wantWeight float64
		wantKinds  []contracts.StrategyKind
	}{
		{
			name:       "both below MA5",
			kospi:      ramp(30, 2700, -10),
			kosdaq:     ramp(30, 900, -3),
			wantPhase:  contracts.PhaseBear,
			wantWeight: 0.3,
			wantKinds:  []contracts.StrategyKind{contracts.StrategyBottomEscape},
		},
		{
			name:       "both above MA5",
			kospi:      ramp(30, 2500, 10),
			kosdaq:     ramp(30, 800, 3),
			wantPhase:  contracts.PhaseBull,
			wantWeight: 1.0,
			wantKinds:  contracts.AllStrategies,
		},
		{
			name:       "mixed",
			kospi:      ramp(30, 2500, 10),
			kosdaq:     ramp(30, 900, -3),
			wantPhase:  contracts.PhaseNeutral,
			wantWeight: 0.7,
			wantKinds:  contracts.AllStrategies,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := collectortest.New()
			data.SetIndex(collector.IndexKOSPI, tt.kospi)
			data.SetIndex(collector.IndexKOSDAQ, tt.kosdaq)

			mc, err := NewClassifier(data, testRiskConfig(), logger.NewNop()).ClassifyMarket(context.Background())
			require.NoError(t, err)

			assert.Equal(t, tt.wantPhase, mc.Phase)
			assert.Equal(t, tt.wantWeight, mc.MaxWeight)
			assert.Equal(t, tt.wantKinds, mc.AllowedStrategies)
			assert.True(t, mc.KOSPI.Available)
			assert.Len(t, mc.Reasons, 3)
		})
	}
}

func TestClassifyMarket_BearReasonAndValues(t *testing.T) {
	data := collectortest.New()
	data.SetIndex(collector.IndexKOSPI, ramp(30, 2700, -10))
	data.SetIndex(collector.IndexKOSDAQ, ramp(30, 900, -3))

	mc, err := NewClassifier(data, testRiskConfig(), logger.NewNop()).ClassifyMarket(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2410.0, mc.KOSPI.Value)
	assert.Equal(t, 2430.0, mc.KOSPI.MA)
	assert.False(t, mc.AnyIndexAboveMA())
	assert.Contains(t, mc.Reasons[0], "코스피 5일선 이탈 (2,410 < MA5 2,430)")
	assert.Contains(t, mc.Reasons[2], "30%")
	assert.Contains(t, mc.Reasons[2], "bottom_escape")
}

func TestClassifyMarket_NoIndexDataIsBear(t *testing.T) {
	mc, err := NewClassifier(collectortest.New(), testRiskConfig(), logger.NewNop()).ClassifyMarket(context.Background())
	require.NoError(t, err)

	assert.Equal(t, contracts.PhaseBear, mc.Phase)
	assert.False(t, mc.KOSPI.Available)
	assert.Contains(t, mc.Reasons[0], "지수 데이터 없음")
}

// stopSeries: MA20 = 9,800 with the given last close
func stopSeries(last float64) contracts.Series {
	closes := make([]float64, 0, 30)
	for i := 0; i < 28; i++ {
		closes = append(closes, 9800)
	}
	// 직전 봉으로 평균을 9,800에 맞춤
	closes = append(closes, 9800+(9800-last), last)
	return series(closes...)
}

func TestCheckStopLoss(t *testing.T) {
	tests := []struct {
		name          string
		last          float64
		wantTriggered bool
		wantAction    contracts.StopLossAction
		wantReason    string
	}{
		{
			name:          "below stop",
			last:          9600,
			wantTriggered: true,
			wantAction:    contracts.ActionSellNow,
			wantReason:    "ATR 기반 손절가(9,700원) 이탈",
		},
		{
			name:          "below MA20 only",
			last:          9750,
			wantTriggered: true,
			wantAction:    contracts.ActionSellAtClose,
			wantReason:    "20일선(9,800원) 종가 이탈",
		},
		{
			name:          "hold",
			last:          10100,
			wantTriggered: false,
			wantAction:    contracts.ActionHold,
			wantReason:    "손절 조건 미해당",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := collectortest.New()
			data.SetSeries("005930", stopSeries(tt.last))
			data.Names["005930"] = "삼성전자"

			report, err := NewClassifier(data, testRiskConfig(), logger.NewNop()).
				CheckStopLoss(context.Background(), "005930", 10000, 9700)
			require.NoError(t, err)

			assert.Equal(t, tt.wantTriggered, report.Triggered)
			assert.Equal(t, tt.wantAction, report.Action)
			assert.Equal(t, tt.wantReason, report.Reason)
			assert.Equal(t, "삼성전자", report.Name)
			assert.Equal(t, 9800.0, report.MA20)
			assert.Equal(t, tt.last, report.CurrentPrice)
		})
	}
}

func TestCheckStopLoss_LossPct(t *testing.T) {
	data := collectortest.New()
	data.SetSeries("005930", stopSeries(9600))

	report, err := NewClassifier(data, testRiskConfig(), logger.NewNop()).
		CheckStopLoss(context.Background(), "005930", 10000, 9700)
	require.NoError(t, err)
	assert.Equal(t, -4.0, report.LossPct)
}

func TestCheckStopLoss_InvalidEntry(t *testing.T) {
	_, err := NewClassifier(collectortest.New(), testRiskConfig(), logger.NewNop()).
		CheckStopLoss(context.Background(), "005930", 0, 9700)
	assert.ErrorIs(t, err, contracts.ErrInvalidRequest)
}

func TestStopLossReports(t *testing.T) {
	data := collectortest.New()
	data.SetSeries("005930", stopSeries(9600))

	reports := NewClassifier(data, testRiskConfig(), logger.NewNop()).StopLossReports(context.Background(), []contracts.Position{
		{Ticker: "005930", EntryPrice: 10000, StopLoss: 9700},
		{Ticker: "MISSING", EntryPrice: 5000, StopLoss: 4800},
	})

	require.Len(t, reports, 2)
	assert.True(t, reports[0].Triggered)
	assert.False(t, reports[1].Triggered)
	assert.Equal(t, contracts.ActionHold, reports[1].Action)
	assert.Contains(t, reports[1].Reason, "데이터 조회 실패")
}

func TestValidatePositionSize(t *testing.T) {
	c := NewClassifier(collectortest.New(), testRiskConfig(), logger.NewNop())
	tenPositions := make([]contracts.Position, 10)
	for i := range tenPositions {
		tenPositions[i] = contracts.Position{Ticker: "X", Value: 10_000}
	}

	tests := []struct {
		name      string
		positions []contracts.Position
		maxWeight float64
		wantBuy   bool
		wantQty   int64
	}{
		{
			name:      "single name cap binds",
			positions: []contracts.Position{{Ticker: "005930", Value: 2_000_000}},
			maxWeight: 0.5,
			wantBuy:   true,
			wantQty:   20,
		},
		{
			name:      "regime cap exhausted",
			positions: []contracts.Position{{Ticker: "005930", EntryPrice: 50_000, Quantity: 60}},
			maxWeight: 0.3,
			wantBuy:   false,
			wantQty:   0,
		},
		{
			name:      "position count reached",
			positions: tenPositions,
			maxWeight: 1.0,
			wantBuy:   false,
			wantQty:   20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := &contracts.MarketCondition{MaxWeight: tt.maxWeight}
			sizing := c.ValidatePositionSize(10_000_000, tt.positions, 50_000, mc)

			assert.Equal(t, tt.wantBuy, sizing.CanBuy)
			assert.Equal(t, tt.wantQty, sizing.SuggestedQuantity)
			assert.Equal(t, float64(tt.wantQty)*50_000, sizing.SuggestedAmount)
			assert.Equal(t, len(tt.positions), sizing.PositionCount)
			assert.NotEmpty(t, sizing.Reason)
		})
	}
}

func TestVolatility(t *testing.T) {
	closes := make([]float64, 0, 40)
	for i := 0; i < 20; i++ {
		closes = append(closes, 100, 98)
	}
	data := collectortest.New()
	data.SetSeries("VOL", series(closes...))

	report, err := NewClassifier(data, testRiskConfig(), logger.NewNop()).Volatility(context.Background(), "VOL")
	require.NoError(t, err)

	assert.Equal(t, 39, report.Days)
	assert.InDelta(t, 0.02, report.Historical.VaR, 1e-4)
	assert.Greater(t, report.Parametric.VaR, 0.0)
	assert.Greater(t, report.DailyVolPct, 0.0)
}

func TestHistoricalTail(t *testing.T) {
	tests := []struct {
		name     string
		returns  []float64
		wantVaR  float64
		wantCVaR float64
	}{
		{
			name:     "two worst of twenty",
			returns:  []float64{0.01, -0.05, 0.02, -0.03, 0.01, 0.0, 0.01, 0.02, -0.01, 0.01, 0.01, 0.02, 0.0, 0.01, 0.01, 0.02, 0.0, 0.01, 0.01, 0.02},
			wantVaR:  0.03,
			wantCVaR: 0.04,
		},
		{name: "no losses", returns: []float64{0.01, 0.02, 0.03}, wantVaR: 0, wantCVaR: 0},
		{name: "single return", returns: []float64{-0.02}, wantVaR: 0.02, wantCVaR: 0.02},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := historicalTail(tt.returns, 0.95)
			assert.InDelta(t, tt.wantVaR, got.VaR, 1e-9)
			assert.InDelta(t, tt.wantCVaR, got.CVaR, 1e-9)
			assert.Equal(t, 0.95, got.Confidence)
		})
	}
}

func TestNormalTail(t *testing.T) {
	got := normalTail(0.01)
	assert.InDelta(t, 0.016449, got.VaR, 1e-6)
	assert.InDelta(t, 0.020627, got.CVaR, 1e-5)
	assert.Greater(t, got.CVaR, got.VaR)

	assert.Zero(t, normalTail(0).VaR)
}

func TestVolatility_TooShort(t *testing.T) {
	data := collectortest.New()
	data.SetSeries("ONE", series(100))

	_, err := NewClassifier(data, testRiskConfig(), logger.NewNop()).Volatility(context.Background(), "ONE")
	assert.ErrorIs(t, err, ErrInsufficientData)
}
