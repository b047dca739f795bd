// Package indicators holds pure technical-indicator functions.
// 정의되지 않은 값(기간 미달)은 math.NaN() 으로 표현한다.
package indicators

import "math"

// SMA returns the simple moving average; NaN until period values exist
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA returns the exponential moving average (span=period, no bias adjustment).
// 처음 period-1 개는 NaN
func EMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	alpha := 2.0 / float64(period+1)
	ema := values[0]
	for i, v := range values {
		if i > 0 {
			ema = alpha*v + (1-alpha)*ema
		}
		if i >= period-1 {
			out[i] = ema
		}
	}
	return out
}

// MovingAverages computes SMA of closes for each period
func MovingAverages(closes []float64, periods []int) map[int][]float64 {
	out := make(map[int][]float64, len(periods))
	for _, p := range periods {
		out[p] = SMA(closes, p)
	}
	return out
}

// SlopePct is the percent change from lookback bars ago to the latest value.
// 데이터 부족 또는 기준값이 0/NaN 이면 0
func SlopePct(series []float64, lookback int) float64 {
	n := len(series)
	if lookback <= 0 || n < lookback+1 {
		return 0
	}
	base := series[n-1-lookback]
	last := series[n-1]
	if !valid(base) || !valid(last) || base == 0 {
		return 0
	}
	return Round((last-base)/base*100, 4)
}

// Cross reports a crossing between the last two bars
type Cross struct {
	Golden bool `json:"golden_cross"`
	Dead   bool `json:"dead_cross"`
}

// DetectCross compares the last two points of short and long.
// golden: 전일 short < long, 금일 short >= long
// dead:   전일 short > long, 금일 short <= long
func DetectCross(short, long []float64) Cross {
	if len(short) < 2 || len(long) < 2 {
		return Cross{}
	}
	s0, s1 := short[len(short)-2], short[len(short)-1]
	l0, l1 := long[len(long)-2], long[len(long)-1]

	return Cross{
		Golden: s0 < l0 && s1 >= l1,
		Dead:   s0 > l0 && s1 <= l1,
	}
}

// GoldenCrossWithin reports a golden cross on the latest bar or up to days bars earlier
func GoldenCrossWithin(short, long []float64, days int) bool {
	n := len(short)
	if len(long) != n {
		return false
	}
	for back := 0; back <= days; back++ {
		end := n - back
		if end < 2 {
			break
		}
		if DetectCross(short[:end], long[:end]).Golden {
			return true
		}
	}
	return false
}

// Last returns the last element or NaN
func Last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}

// Round rounds half away from zero to dp decimal places
func Round(v float64, dp int) float64 {
	p := math.Pow(10, float64(dp))
	return math.Round(v*p) / p
}

func valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
