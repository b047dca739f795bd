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
	breakoutBars     = 120
	breakoutTrigger  = 55.0
	breakoutApproved = 70.0
)

// BreakoutStrategy 박스권 돌파: 박스 상단 돌파 + 매도 호가 잔량 + 프로그램 + 거래량 급증
type BreakoutStrategy struct{ base }

// NewBreakoutStrategy creates the breakout evaluator
func NewBreakoutStrategy(data collector.MarketData, log *logger.Logger) *BreakoutStrategy {
	return &BreakoutStrategy{base{data: data, logger: log}}
}

// Kind implements Evaluator
func (s *BreakoutStrategy) Kind() contracts.StrategyKind { return contracts.StrategyBreakout }

// Evaluate implements Evaluator
func (s *BreakoutStrategy) Evaluate(ctx context.Context, ticker string, params strategyconfig.Params) (*contracts.Signal, error) {
	p := params.Breakout
	sig := contracts.NewSignal(ticker, s.Kind())

	series, err := s.data.GetSeries(ctx, ticker, breakoutBars)
	if err != nil {
		return nil, fmt.Errorf("get series: %w", err)
	}
	if len(series) < minBars {
		return sig, nil
	}
	current := series.Last().Close
	sig.CurrentPrice = current

	// 1. 박스권
	box, ok := indicators.DetectBoxRange(series, p.BoxLookback, p.BoxTolerance)
	if !ok {
		return sig, nil
	}
	var score float64
	switch {
	case box.Breakout:
		score = 35
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("박스 상단(%s원) 돌파", won(box.Top)))
	case box.NearTop:
		score = 15
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("박스 상단(%s원) 근접", won(box.Top)))
	default:
		return sig, nil
	}
	sig.Details["box_top"] = box.Top
	sig.Details["box_bottom"] = box.Bottom
	sig.Details["box_range_pct"] = box.RangePct

	// 2. 호가 잔량
	if book, err := s.data.GetOrderBook(ctx, ticker); err != nil {
		s.logger.WithError(err).WithField("ticker", ticker).Debug("Order book unavailable")
	} else {
		sig.Details["ask_bid_ratio"] = book.AskBidRatio
		if book.AskBidRatio >= p.AskBidRatio {
			score += 25
			sig.Reasons = append(sig.Reasons, fmt.Sprintf("매도 잔량 %.1f배 (돌파 시 매물 소화)", book.AskBidRatio))
		}
	}

	// 3. 프로그램 순매수
	if flow, err := s.data.GetFlow(ctx, ticker); err != nil {
		s.logger.WithError(err).WithField("ticker", ticker).Debug("Flow unavailable for breakout")
	} else {
		sig.Details["program_net"] = flow.ProgramNet
		if flow.ProgramNet > 0 {
			score += 20
			sig.Reasons = append(sig.Reasons, "프로그램 순매수 유입")
		}
	}

	// 4. 거래량 급증
	surge := volumeSurge(series, p.VolumeAvgDays)
	sig.Details["volume_surge"] = surge
	if surge >= p.VolumeSurgeRatio {
		score += 20
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("거래량 %.1f배 급증", surge))
	}

	entry1 := indicators.Round(box.Top, 0)
	height := box.Height()
	finalize(sig, score, breakoutTrigger, levels{
		entry1:  entry1,
		entry2:  indicators.Round(box.Top*1.01, 0),
		target1: indicators.Round(box.Top+height*0.5, 0),
		target2: indicators.Round(box.Top+height, 0),
		stop:    math.Max(atrStop(series, entry1, params.Risk), indicators.Round(box.Bottom, 0)),
	})
	approve(sig, box.Breakout && sig.Confidence >= breakoutApproved)

	return sig, nil
}

// volumeSurge is the latest volume over the mean of the last days volumes
func volumeSurge(series contracts.Series, days int) float64 {
	recent := series.Tail(days)
	if len(recent) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range recent {
		sum += float64(b.Volume)
	}
	avg := sum / float64(len(recent))
	if avg <= 0 {
		return 0
	}
	return indicators.Round(float64(series.Last().Volume)/avg, 2)
}
