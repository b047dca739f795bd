package s2_signals

import (
	"math"
	"strconv"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/indicators"
	"github.com/wonny/quantscan/internal/s0_data/collector"
	"github.com/wonny/quantscan/internal/strategyconfig"
	"github.com/wonny/quantscan/pkg/logger"
)

// minBars 전략 공통 최소 봉 수
const minBars = 30

// base carries what every evaluator needs
type base struct {
	data   collector.MarketData
	logger *logger.Logger
}

// levels are the won-rounded trade prices of a triggered signal
type levels struct {
	entry1, entry2   float64
	target1, target2 float64
	stop             float64
}

// fibTargets picks Fibonacci extension targets, falling back to entry multiples.
// 목표가는 항상 entry1 보다 위, target2 > target1
func fibTargets(series contracts.Series, entry, f1, f2 float64) (float64, float64) {
	t := indicators.TargetPrice(series)
	t1, t2 := t.First, t.Second
	if !t.HasFirst() || t1 <= entry {
		t1 = indicators.Round(entry*f1, 0)
	}
	if !t.HasSecond() || t2 <= t1 {
		t2 = math.Max(indicators.Round(entry*f2, 0), t1+1)
	}
	return t1, t2
}

// minStopDistance 손절가는 최소 entry1의 1% 아래 (ATR=0인 횡보 구간 대비)
const minStopDistance = 0.01

// atrStop is entry1 - ATR x multiplier with the 2% fallback ATR,
// never closer than minStopDistance below entry
func atrStop(series contracts.Series, entry float64, risk strategyconfig.RiskParams) float64 {
	atr := indicators.LatestATR(series, risk.ATRPeriod, risk.ATRFallbackPct)
	stop := indicators.StopLoss(entry, atr, risk.ATRMultiplier)
	return math.Min(stop, math.Floor(entry*(1-minStopDistance)))
}

// finalize caps confidence and, when triggered, fills the price fields
func finalize(sig *contracts.Signal, score, threshold float64, lv levels) {
	sig.Confidence = math.Min(score, 100)
	sig.Triggered = score >= threshold
	if !sig.Triggered {
		return
	}
	sig.Entry1 = lv.entry1
	sig.Entry2 = lv.entry2
	sig.Target1 = lv.target1
	sig.Target2 = lv.target2
	sig.StopLoss = lv.stop
	sig.RiskReward = indicators.RiskReward(lv.entry1, lv.target1, lv.stop)
}

// approve sets the strategy's own verdict
func approve(sig *contracts.Signal, ok bool) {
	if sig.Triggered && ok {
		sig.Verdict = contracts.VerdictApproved
	} else {
		sig.Verdict = contracts.VerdictWatch
	}
}

// won formats a price as 72,500
func won(v float64) string {
	s := strconv.FormatInt(int64(math.Round(v)), 10)
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	out := make([]byte, 0, len(s)+len(s)/3)
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
