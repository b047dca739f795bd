package s2_signals

import (
	"context"
	"fmt"
	"math"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/indicators"
	"github.com/wonny/quantscan/internal/s0_data/collector"
	"github.com/wonny/quantscan/internal/strategyconfig"
	"github.com/wonny/quantscan/pkg/logger"
)

const (
	pullbackBars     = 100
	pullbackTrigger  = 65.0
	pullbackApproved = 75.0
	holdingsWindow   = 5
)

// PullbackStrategy 눌림목 스윙: 기준봉 중심 지지 + 거래량 급감 + 기관 보유 유지
type PullbackStrategy struct{ base }

// NewPullbackStrategy creates the pullback evaluator
func NewPullbackStrategy(data collector.MarketData, log *logger.Logger) *PullbackStrategy {
	return &PullbackStrategy{base{data: data, logger: log}}
}

// Kind implements Evaluator
func (s *PullbackStrategy) Kind() contracts.StrategyKind { return contracts.StrategyPullback }

// Evaluate implements Evaluator
func (s *PullbackStrategy) Evaluate(ctx context.Context, ticker string, params strategyconfig.Params) (*contracts.Signal, error) {
	p := params.Pullback
	sig := contracts.NewSignal(ticker, s.Kind())

	series, err := s.data.GetSeries(ctx, ticker, pullbackBars)
	if err != nil {
		return nil, fmt.Errorf("get series: %w", err)
	}
	if len(series) < minBars {
		return sig, nil
	}
	current := series.Last().Close
	sig.CurrentPrice = current

	// 1. 기준봉 중심값 지지
	ref, ok := indicators.FindReferenceCandle(series, p.ReferenceCandleLookback)
	if !ok || current < ref.Center*(1-p.SupportTolerance) {
		return sig, nil
	}
	score := 40.0
	sig.Reasons = append(sig.Reasons, fmt.Sprintf("기준봉 중심값(%s원) 지지 확인", won(ref.Center)))
	sig.Details["reference_center"] = indicators.Round(ref.Center, 0)

	// 2. 거래량 급감
	cliff := indicators.DetectVolumeCliff(series, p.VolumeCliffLookback, p.VolumeCliffThreshold)
	sig.Details["volume_ratio"] = cliff.Ratio
	if cliff.Cliff || cliff.SellExhaustion {
		score += 35
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("거래량 급감 (평균 대비 %.0f%%)", cliff.Ratio*100))
	}

	// 3. 기관 보유 물량 유지
	held := false
	if flow, err := s.data.GetFlow(ctx, ticker); err != nil {
		s.logger.WithError(err).WithField("ticker", ticker).Debug("Flow unavailable for pullback")
	} else {
		held = holdingsSteady(flow.InstitutionHoldings, p.InstitutionHoldTolerance)
	}
	sig.Details["institution_hold"] = held
	if held {
		score += 25
		sig.Reasons = append(sig.Reasons, "기관 보유 물량 유지")
	}

	entry1 := indicators.Round(ref.Center, 0)
	target1, target2 := fibTargets(series, entry1, 1.05, 1.10)
	finalize(sig, score, pullbackTrigger, levels{
		entry1:  entry1,
		entry2:  indicators.Round(ref.Center*0.98, 0),
		target1: target1,
		target2: target2,
		stop:    atrStop(series, entry1, params.Risk),
	})
	approve(sig, sig.Confidence >= pullbackApproved)

	s.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"score":  score,
	}).Debug("Evaluated pullback")

	return sig, nil
}

// holdingsSteady: 최근 5개 보유 수량의 (max-min)/|mean| <= tolerance
func holdingsSteady(holdings []float64, tolerance float64) bool {
	if len(holdings) < holdingsWindow {
		return false
	}
	recent := holdings[len(holdings)-holdingsWindow:]
	lo, hi, sum := recent[0], recent[0], 0.0
	for _, v := range recent {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		sum += v
	}
	mean := sum / float64(len(recent))
	if mean == 0 {
		return false
	}
	return (hi-lo)/math.Abs(mean) <= tolerance
}
