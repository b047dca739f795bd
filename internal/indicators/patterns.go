package indicators

import (
	"math"
	"time"

	"github.com/wonny/quantscan/internal/contracts"
)

// ReferenceCandle is the anchor candle for pullback entries
type ReferenceCandle struct {
	Date   time.Time `json:"date"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Center float64   `json:"center"`
}

// FindReferenceCandle looks at lookback bars ending 5 bars before the latest,
// picks the widest bullish candle (any candle if none is bullish).
func FindReferenceCandle(bars contracts.Series, lookback int) (ReferenceCandle, bool) {
	if lookback <= 0 || len(bars) < lookback {
		return ReferenceCandle{}, false
	}

	start := len(bars) - (lookback + 5)
	if start < 0 {
		start = 0
	}
	end := start + lookback
	if end > len(bars) {
		end = len(bars)
	}
	window := bars[start:end]

	pick := func(onlyBullish bool) (contracts.PriceBar, bool) {
		var best contracts.PriceBar
		found := false
		for _, b := range window {
			if onlyBullish && b.Close <= b.Open {
				continue
			}
			if !found || b.High-b.Low > best.High-best.Low {
				best = b
				found = true
			}
		}
		return best, found
	}

	ref, ok := pick(true)
	if !ok {
		ref, ok = pick(false)
	}
	if !ok {
		return ReferenceCandle{}, false
	}

	return ReferenceCandle{
		Date:   ref.Date,
		High:   ref.High,
		Low:    ref.Low,
		Center: (ref.High + ref.Low) / 2,
	}, true
}

// AccumulationCandle is a high-volume bar with buying pressure
type AccumulationCandle struct {
	Date           time.Time `json:"date"`
	Close          float64   `json:"close"`
	Volume         int64     `json:"volume"`
	VolumeMultiple float64   `json:"volume_multiple"`
}

// DetectAccumulation flags bars in the last lookback whose volume exceeds
// volumeRatio x the window average and that are bullish or have a lower wick
// longer than half the body.
func DetectAccumulation(bars contracts.Series, lookback int, volumeRatio float64) []AccumulationCandle {
	if lookback <= 0 || len(bars) < lookback {
		return nil
	}
	recent := bars.Tail(lookback)
	avgVol := mean(recent.Volumes())
	if avgVol <= 0 {
		return nil
	}

	var out []AccumulationCandle
	for _, b := range recent {
		highVolume := float64(b.Volume) > avgVol*volumeRatio
		bullish := b.Close > b.Open
		body := math.Abs(b.Close - b.Open)
		lowerWick := math.Min(b.Open, b.Close) - b.Low
		longLowerWick := body > 0 && lowerWick > body*0.5

		if highVolume && (bullish || longLowerWick) {
			out = append(out, AccumulationCandle{
				Date:           b.Date,
				Close:          b.Close,
				Volume:         b.Volume,
				VolumeMultiple: Round(float64(b.Volume)/avgVol, 2),
			})
		}
	}
	return out
}

// DefaultBoxTolerance is the "near top" band below the box ceiling
const DefaultBoxTolerance = 0.05

// Box is a trading range
type Box struct {
	Top      float64 `json:"top"`
	Bottom   float64 `json:"bottom"`
	RangePct float64 `json:"range_pct"`
	NearTop  bool    `json:"near_top"`
	Breakout bool    `json:"breakout"`
}

// Height returns top - bottom
func (b Box) Height() float64 { return b.Top - b.Bottom }

// DetectBoxRange builds the box from the lookback bars before the latest bar
// and compares the latest close against it.
func DetectBoxRange(bars contracts.Series, lookback int, tolerance float64) (Box, bool) {
	if lookback <= 0 || len(bars) < lookback+1 {
		return Box{}, false
	}
	window := bars[len(bars)-1-lookback : len(bars)-1]
	top := maxOf(window.Highs())
	bottom := minOf(window.Lows())
	current := bars.Last().Close
	if bottom <= 0 || current <= 0 {
		return Box{}, false
	}

	return Box{
		Top:      top,
		Bottom:   bottom,
		RangePct: Round((top-bottom)/bottom*100, 2),
		NearTop:  (top-current)/current <= tolerance,
		Breakout: current > top,
	}, true
}

// VolumeCliff describes a volume dry-up
type VolumeCliff struct {
	Cliff          bool    `json:"volume_cliff"`
	Ratio          float64 `json:"ratio"`
	Decreasing     bool    `json:"decreasing"`
	PriceDeclining bool    `json:"price_declining"`
	SellExhaustion bool    `json:"sell_exhaustion"`
}

// DetectVolumeCliff: latest volume / lookback average <= threshold and the
// last 3 volumes non-increasing. Sell exhaustion adds a falling close.
func DetectVolumeCliff(bars contracts.Series, lookback int, threshold float64) VolumeCliff {
	if lookback <= 0 || len(bars) < lookback {
		return VolumeCliff{}
	}
	avgVol := mean(bars.Tail(lookback).Volumes())
	last := float64(bars.Last().Volume)
	ratio := 1.0
	if avgVol > 0 {
		ratio = last / avgVol
	}

	last3 := bars.Tail(3)
	decreasing := true
	for i := 1; i < len(last3); i++ {
		if last3[i].Volume > last3[i-1].Volume {
			decreasing = false
			break
		}
	}

	priceDeclining := len(bars) >= 3 && bars[len(bars)-1].Close < bars[len(bars)-3].Close
	cliff := ratio <= threshold && decreasing

	return VolumeCliff{
		Cliff:          cliff,
		Ratio:          Round(ratio, 3),
		Decreasing:     decreasing,
		PriceDeclining: priceDeclining,
		SellExhaustion: cliff && priceDeclining,
	}
}
