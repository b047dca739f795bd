package indicators

import (
	"sort"

	"github.com/wonny/quantscan/internal/contracts"
)

var (
	// DefaultRetracementLevels 되돌림 비율
	DefaultRetracementLevels = []float64{0, 0.236, 0.382, 0.5, 0.618, 0.786, 1.0}

	// DefaultExtensionLevels 확장 비율 (목표가)
	DefaultExtensionLevels = []float64{1.0, 1.272, 1.618, 2.0, 2.618}
)

// Level is a price at a Fibonacci ratio
type Level struct {
	Ratio float64 `json:"ratio"`
	Price float64 `json:"price"`
}

// FibonacciRetracement returns high - (high-low)*ratio for each ratio, rounded to won
func FibonacciRetracement(high, low float64, levels []float64) []Level {
	if levels == nil {
		levels = DefaultRetracementLevels
	}
	diff := high - low
	out := make([]Level, len(levels))
	for i, r := range levels {
		out[i] = Level{Ratio: r, Price: Round(high-diff*r, 0)}
	}
	return out
}

// FibonacciExtension returns low + (high-low)*ratio for each ratio, rounded to won
func FibonacciExtension(high, low float64, levels []float64) []Level {
	if levels == nil {
		levels = DefaultExtensionLevels
	}
	diff := high - low
	out := make([]Level, len(levels))
	for i, r := range levels {
		out[i] = Level{Ratio: r, Price: Round(low+diff*r, 0)}
	}
	return out
}

// Targets holds Fibonacci-extension targets above the current price
type Targets struct {
	Current   float64 `json:"current"`
	SwingHigh float64 `json:"swing_high"`
	SwingLow  float64 `json:"swing_low"`
	First     float64 `json:"target_1,omitempty"`
	Second    float64 `json:"target_2,omitempty"`
}

// HasFirst reports whether a first target exists
func (t Targets) HasFirst() bool { return t.First > 0 }

// HasSecond reports whether a second target exists
func (t Targets) HasSecond() bool { return t.Second > 0 }

// TargetPrice takes the swing over the last 60 bars and picks the two smallest
// extension levels strictly above the current close. 20봉 미만이면 빈 결과
func TargetPrice(bars contracts.Series) Targets {
	if len(bars) < 20 {
		return Targets{}
	}
	recent := bars.Tail(60)
	t := Targets{
		Current:   bars.Last().Close,
		SwingHigh: maxOf(recent.Highs()),
		SwingLow:  minOf(recent.Lows()),
	}

	var above []float64
	for _, lv := range FibonacciExtension(t.SwingHigh, t.SwingLow, nil) {
		if lv.Price > t.Current {
			above = append(above, lv.Price)
		}
	}
	sort.Float64s(above)
	if len(above) > 0 {
		t.First = above[0]
	}
	if len(above) > 1 {
		t.Second = above[1]
	}
	return t
}

// StopLoss is entry - atr*multiplier, rounded to won
func StopLoss(entry, atr, multiplier float64) float64 {
	return Round(entry-atr*multiplier, 0)
}

// RiskReward is (target1-entry1)/max(entry1-stop,1), two decimals
func RiskReward(entry, target, stop float64) float64 {
	risk := entry - stop
	if risk < 1 {
		risk = 1
	}
	return Round((target-entry)/risk, 2)
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
