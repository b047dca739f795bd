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
	convergenceBars      = 200
	convergenceTrigger   = 55.0
	convergenceApproved  = 70.0
	convergenceIndexDays = 30
	convergenceEntryMA   = 20
	convergenceMAFloor   = 0.97
)

// ConvergenceStrategy 이평선 수렴: 수렴 + 정배열 + 확산 시작 + 지수 단기 추세
type ConvergenceStrategy struct{ base }

// NewConvergenceStrategy creates the MA-convergence evaluator
func NewConvergenceStrategy(data collector.MarketData, log *logger.Logger) *ConvergenceStrategy {
	return &ConvergenceStrategy{base{data: data, logger: log}}
}

// Kind implements Evaluator
func (s *ConvergenceStrategy) Kind() contracts.StrategyKind { return contracts.StrategyConvergence }

// Evaluate implements Evaluator
func (s *ConvergenceStrategy) Evaluate(ctx context.Context, ticker string, params strategyconfig.Params) (*contracts.Signal, error) {
	p := params.Convergence
	sig := contracts.NewSignal(ticker, s.Kind())

	series, err := s.data.GetSeries(ctx, ticker, convergenceBars)
	if err != nil {
		return nil, fmt.Errorf("get series: %w", err)
	}
	longest := params.LongestMA()
	if len(series) < longest || len(series) < minBars {
		return sig, nil
	}
	closes := series.Closes()
	current := series.Last().Close
	sig.CurrentPrice = current

	// 1. 수렴
	mas := indicators.MovingAverages(closes, p.MAPeriods)
	conv := indicators.MAConvergence(mas, p.MAPeriods, p.ConvergencePct)
	if !conv.Available {
		return sig, nil
	}
	var score float64
	switch {
	case conv.Converged:
		score = 30
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("이평선 수렴 (편차 %.2f%%)", conv.SpreadPct))
	case conv.SpreadPct <= p.ConvergencePct*100*p.NearFactor:
		score = 15
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("이평선 수렴 근접 (편차 %.2f%%)", conv.SpreadPct))
	default:
		return sig, nil
	}
	sig.Details["spread_pct"] = conv.SpreadPct
	sig.Details["ma_values"] = conv.Values

	// 2. 정배열
	if conv.Aligned {
		score += 25
		sig.Reasons = append(sig.Reasons, "정배열 확인")
	}

	// 3. 확산 시작
	if conv.Diverging {
		score += 30
		sig.Reasons = append(sig.Reasons, "이평선 확산 시작")
	}

	// 4. 지수 단기 추세
	if idx, err := s.data.GetIndex(ctx, p.IndexCode, convergenceIndexDays); err != nil {
		s.logger.WithError(err).WithField("index", p.IndexCode).Debug("Index unavailable for convergence")
	} else if len(idx) > 0 {
		ma := indicators.Last(indicators.SMA(idx.Closes(), p.IndexMAPeriod))
		if !math.IsNaN(ma) && idx.Last().Close > ma {
			score += 15
			sig.Reasons = append(sig.Reasons, fmt.Sprintf("지수 %d일선 위", p.IndexMAPeriod))
		}
	}

	ma20 := indicators.Last(indicators.SMA(closes, convergenceEntryMA))
	floor := indicators.Round(conv.Values[longest]*convergenceMAFloor, 0)
	entry1 := indicators.Round(current, 0)
	target1, target2 := fibTargets(series, entry1, 1.08, 1.15)
	finalize(sig, score, convergenceTrigger, levels{
		entry1:  entry1,
		entry2:  indicators.Round(ma20, 0),
		target1: target1,
		target2: target2,
		stop:    math.Max(atrStop(series, entry1, params.Risk), floor),
	})
	approve(sig, sig.Confidence >= convergenceApproved && conv.Aligned && conv.Diverging)

	return sig, nil
}
