package indicators

import (
	"math"

	"github.com/wonny/quantscan/internal/contracts"
)

// RSI is Wilder's relative strength index.
// 평균 이득/손실은 com=period-1 지수평활, 데이터 부족 또는 손실 0 이면 50
func RSI(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = 50
	}
	if period <= 0 || len(values) == 0 {
		return out
	}

	decay := 1 - 1/float64(period)
	var gainNum, lossNum, weight float64

	for i := range values {
		gain, loss := 0.0, 0.0
		if i > 0 {
			delta := values[i] - values[i-1]
			if delta > 0 {
				gain = delta
			} else if delta < 0 {
				loss = -delta
			}
		}

		gainNum = gain + decay*gainNum
		lossNum = loss + decay*lossNum
		weight = 1 + decay*weight

		if i < period-1 {
			continue
		}
		avgGain := gainNum / weight
		avgLoss := lossNum / weight
		if avgLoss == 0 {
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|); the first bar uses high-low
func TrueRange(bars contracts.Series) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		tr := b.High - b.Low
		if i > 0 {
			prev := bars[i-1].Close
			tr = math.Max(tr, math.Max(math.Abs(b.High-prev), math.Abs(b.Low-prev)))
		}
		out[i] = tr
	}
	return out
}

// ATR is the rolling mean of the true range; NaN until period bars exist
func ATR(bars contracts.Series, period int) []float64 {
	return SMA(TrueRange(bars), period)
}

// LatestATR returns the last ATR or fallbackPct of the last close when undefined
func LatestATR(bars contracts.Series, period int, fallbackPct float64) float64 {
	if v := Last(ATR(bars, period)); valid(v) {
		return v
	}
	return bars.Last().Close * fallbackPct
}
