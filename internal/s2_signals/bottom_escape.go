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
	bottomEscapeBars     = 100
	bottomEscapeTrigger  = 60.0
	bottomEscapeApproved = 70.0
)

// BottomEscapeStrategy 바닥 탈출: 이평선 돌파 + 매물대 벽 없음 + 매집봉
type BottomEscapeStrategy struct{ base }

// NewBottomEscapeStrategy creates the bottom-escape evaluator
func NewBottomEscapeStrategy(data collector.MarketData, log *logger.Logger) *BottomEscapeStrategy {
	return &BottomEscapeStrategy{base{data: data, logger: log}}
}

// Kind implements Evaluator
func (s *BottomEscapeStrategy) Kind() contracts.StrategyKind { return contracts.StrategyBottomEscape }

// Evaluate implements Evaluator
func (s *BottomEscapeStrategy) Evaluate(ctx context.Context, ticker string, params strategyconfig.Params) (*contracts.Signal, error) {
	p := params.BottomEscape
	sig := contracts.NewSignal(ticker, s.Kind())

	series, err := s.data.GetSeries(ctx, ticker, bottomEscapeBars)
	if err != nil {
		return nil, fmt.Errorf("get series: %w", err)
	}
	if len(series) < minBars {
		return sig, nil
	}
	closes := series.Closes()
	current := series.Last().Close
	sig.CurrentPrice = current

	// 1. 이평선 돌파 (당일 또는 최근 N일 내)
	ma := indicators.SMA(closes, p.MAPeriod)
	maNow := indicators.Last(ma)
	if math.IsNaN(maNow) || current <= maNow {
		return sig, nil
	}
	switch {
	case crossedToday(closes, ma):
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("%d일선(%s원) 상향 돌파", p.MAPeriod, won(maNow)))
	case belowWithin(closes, ma, p.RecentBreakoutDays):
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("최근 %d일 내 %d일선 돌파 후 안착", p.RecentBreakoutDays, p.MAPeriod))
	default:
		return sig, nil
	}
	score := 40.0
	sig.Details["ma"] = indicators.Round(maNow, 0)

	// 2. 상단 매물대 벽
	profile, err := s.data.GetVolumeProfile(ctx, ticker, p.ProfileDays, indicators.DefaultProfileBins)
	if err != nil {
		s.logger.WithError(err).WithField("ticker", ticker).Debug("Volume profile unavailable")
	}
	wall := indicators.CheckResistanceWall(profile, current, p.ResistanceZonePct)
	if wall.Present {
		score += 10
	} else {
		score += 30
	}
	sig.Reasons = append(sig.Reasons, wall.Assessment)
	sig.Details["resistance_wall"] = wall.Present
	sig.Details["resistance_share_pct"] = wall.SharePct

	// 3. 매집봉
	acc := indicators.DetectAccumulation(series, p.AccumulationLookback, p.AccumulationVolumeRatio)
	if len(acc) > 0 {
		score += 30
		strongest := acc[0].VolumeMultiple
		for _, a := range acc[1:] {
			strongest = math.Max(strongest, a.VolumeMultiple)
		}
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("매집봉 %d개 (최대 %.1fx)", len(acc), strongest))
	}
	sig.Details["accumulation_count"] = len(acc)

	entry1 := indicators.Round(maNow, 0)
	target1, target2 := fibTargets(series, entry1, 1.07, 1.15)
	finalize(sig, score, bottomEscapeTrigger, levels{
		entry1:  entry1,
		entry2:  indicators.Round(maNow*0.98, 0),
		target1: target1,
		target2: target2,
		stop:    atrStop(series, entry1, params.Risk),
	})
	approve(sig, sig.Confidence >= bottomEscapeApproved && !wall.Present)

	return sig, nil
}

// crossedToday: 전일 종가 <= 전일 MA, 금일 종가 > 금일 MA
func crossedToday(closes, ma []float64) bool {
	i := len(closes) - 1
	if i < 1 || math.IsNaN(ma[i]) || math.IsNaN(ma[i-1]) {
		return false
	}
	return closes[i] > ma[i] && closes[i-1] <= ma[i-1]
}

// belowWithin reports any close under its MA in the previous 1..days bars
func belowWithin(closes, ma []float64, days int) bool {
	n := len(closes)
	for back := 1; back <= days; back++ {
		i := n - 1 - back
		if i < 0 {
			break
		}
		if !math.IsNaN(ma[i]) && closes[i] < ma[i] {
			return true
		}
	}
	return false
}
