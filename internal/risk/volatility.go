package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/indicators"
)

const (
	volatilityDays       = 100
	volatilityConfidence = 0.95
	// 단측 95% 정규분위수
	z95 = 1.6448536269514722
)

// ErrInsufficientData marks a series too short for return statistics
var ErrInsufficientData = errors.New("insufficient data")

// TailRisk is the 1-day downside at a confidence level.
// ⭐ SSOT: 손실은 양수 비율 (0.03 = 3% 하락)
type TailRisk struct {
	Confidence float64 `json:"confidence"`
	VaR        float64 `json:"var"`
	CVaR       float64 `json:"cvar"`
}

// VolatilityReport summarizes the daily downside of one ticker
type VolatilityReport struct {
	Ticker       string   `json:"ticker"`
	Days         int      `json:"days"`
	DailyVolPct  float64  `json:"daily_vol_pct"`
	ATRPct       float64  `json:"atr_pct"`
	Historical   TailRisk `json:"historical"`
	Parametric   TailRisk `json:"parametric"`
	SuggestedATR float64  `json:"suggested_stop_distance"` // ATR x multiplier (원)
}

// Volatility computes 1-day 95% VaR from the last 100 daily returns plus the ATR stop distance
func (c *Classifier) Volatility(ctx context.Context, ticker string) (*VolatilityReport, error) {
	series, err := c.data.GetSeries(ctx, ticker, volatilityDays)
	if err != nil {
		return nil, fmt.Errorf("volatility %s: %w", ticker, err)
	}

	returns := dailyReturns(series)
	if len(returns) == 0 {
		return nil, fmt.Errorf("volatility %s: %w", ticker, ErrInsufficientData)
	}

	sd := sampleStdDev(returns)
	last := series.Last().Close
	atr := indicators.LatestATR(series, c.config.ATRPeriod, 0.02)
	atrPct := 0.0
	if last > 0 {
		atrPct = atr / last * 100
	}

	return &VolatilityReport{
		Ticker:       ticker,
		Days:         len(returns),
		DailyVolPct:  indicators.Round(sd*100, 2),
		ATRPct:       indicators.Round(atrPct, 2),
		Historical:   historicalTail(returns, volatilityConfidence).rounded(),
		Parametric:   normalTail(sd).rounded(),
		SuggestedATR: indicators.Round(atr*c.config.ATRMultiplier, 0),
	}, nil
}

// dailyReturns returns close-to-close returns, skipping bars after a zero close
func dailyReturns(series contracts.Series) []float64 {
	closes := series.Closes()
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] > 0 {
			out = append(out, closes[i]/closes[i-1]-1)
		}
	}
	return out
}

// historicalTail reads VaR at the (1-confidence) quantile of the observed returns.
// CVaR는 그 분위수까지의 평균 손실
func historicalTail(returns []float64, confidence float64) TailRisk {
	sorted := slices.Clone(returns)
	slices.Sort(sorted)

	cut := min(int(math.Floor((1-confidence)*float64(len(sorted)))), len(sorted)-1)

	var sum float64
	for _, r := range sorted[:cut+1] {
		sum += r
	}
	return TailRisk{
		Confidence: confidence,
		VaR:        lossOf(sorted[cut]),
		CVaR:       lossOf(sum / float64(cut+1)),
	}
}

// normalTail assumes zero-mean normal returns at 95%.
// ES = σ·φ(z)/(1-c)
func normalTail(sd float64) TailRisk {
	density := math.Exp(-z95*z95/2) / math.Sqrt(2*math.Pi)
	return TailRisk{
		Confidence: volatilityConfidence,
		VaR:        z95 * sd,
		CVaR:       sd * density / (1 - volatilityConfidence),
	}
}

func (t TailRisk) rounded() TailRisk {
	t.VaR = indicators.Round(t.VaR, 4)
	t.CVaR = indicators.Round(t.CVaR, 4)
	return t
}

func lossOf(r float64) float64 {
	return math.Max(-r, 0)
}

func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(len(values)-1))
}
