package s2_signals

import (
	"context"
	"fmt"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/indicators"
	"github.com/wonny/quantscan/internal/s0_data/collector"
	"github.com/wonny/quantscan/internal/strategyconfig"
	"github.com/wonny/quantscan/pkg/logger"
)

const (
	goldenCrossBars     = 100
	goldenCrossTrigger  = 65.0
	goldenCrossApproved = 75.0
)

// GoldenCrossStrategy 골든크로스: 단기/장기 이평 교차 + 장기 이평 기울기 + RSI
type GoldenCrossStrategy struct{ base }

// NewGoldenCrossStrategy creates the golden-cross evaluator
func NewGoldenCrossStrategy(data collector.MarketData, log *logger.Logger) *GoldenCrossStrategy {
	return &GoldenCrossStrategy{base{data: data, logger: log}}
}

// Kind implements Evaluator
func (s *GoldenCrossStrategy) Kind() contracts.StrategyKind { return contracts.StrategyGoldenCross }

// Evaluate implements Evaluator
func (s *GoldenCrossStrategy) Evaluate(ctx context.Context, ticker string, params strategyconfig.Params) (*contracts.Signal, error) {
	p := params.GoldenCross
	sig := contracts.NewSignal(ticker, s.Kind())

	series, err := s.data.GetSeries(ctx, ticker, goldenCrossBars)
	if err != nil {
		return nil, fmt.Errorf("get series: %w", err)
	}
	if len(series) < minBars {
		return sig, nil
	}
	closes := series.Closes()
	current := series.Last().Close
	sig.CurrentPrice = current

	short := indicators.SMA(closes, p.ShortMA)
	long := indicators.SMA(closes, p.LongMA)

	// 1. 교차
	if !indicators.GoldenCrossWithin(short, long, p.CrossWithinDays) {
		return sig, nil
	}
	score := 40.0
	if indicators.DetectCross(short, long).Golden {
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("골든크로스 발생 (MA%d/MA%d)", p.ShortMA, p.LongMA))
	} else {
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("최근 %d일 내 골든크로스 (MA%d/MA%d)", p.CrossWithinDays, p.ShortMA, p.LongMA))
	}

	// 2. 장기 이평 기울기
	slope := indicators.SlopePct(long, p.SlopeLookback)
	slopeOK := slope >= p.MASlopeMin
	if slopeOK {
		score += 25
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("MA%d 기울기 %+.2f%% (상승 전환)", p.LongMA, slope))
	} else {
		score += 5
	}

	// 3. RSI
	rsi := indicators.RSI(closes, p.RSIPeriod)
	prev, now := rsi[len(rsi)-2], rsi[len(rsi)-1]
	switch {
	case prev < p.RSIThreshold && now >= p.RSIThreshold:
		score += 35
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("RSI %.0f 상향 돌파 (%.1f)", p.RSIThreshold, now))
	case now > p.RSIThreshold && now > prev:
		score += 20
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("RSI %.1f 상승 중", now))
	}
	sig.Details["rsi"] = indicators.Round(now, 2)
	sig.Details["ma_slope"] = slope

	longNow := indicators.Last(long)
	entry1 := indicators.Round(current, 0)
	target1, target2 := fibTargets(series, entry1, 1.07, 1.15)
	finalize(sig, score, goldenCrossTrigger, levels{
		entry1:  entry1,
		entry2:  indicators.Round(longNow, 0),
		target1: target1,
		target2: target2,
		stop:    atrStop(series, entry1, params.Risk),
	})
	approve(sig, sig.Confidence >= goldenCrossApproved && slopeOK)

	return sig, nil
}
