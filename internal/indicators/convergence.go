package indicators

import "math"

// Convergence describes how tightly a set of moving averages is packed
type Convergence struct {
	Available bool            `json:"available"`
	Converged bool            `json:"converged"`
	Aligned   bool            `json:"aligned"`
	Diverging bool            `json:"diverging"`
	SpreadPct float64         `json:"spread_pct"`
	Values    map[int]float64 `json:"ma_values"`
}

// Spread is (max-min)/min; +Inf when min <= 0
func Spread(values []float64) float64 {
	if len(values) == 0 {
		return math.Inf(1)
	}
	lo, hi := minOf(values), maxOf(values)
	if lo <= 0 {
		return math.Inf(1)
	}
	return (hi - lo) / lo
}

// MAConvergence evaluates the latest MA values for periods (short to long).
// converged: spread <= threshold
// aligned:   strictly descending from short to long period
// diverging: spread today > yesterday > 2 days ago (needs 5 points)
func MAConvergence(maByPeriod map[int][]float64, periods []int, threshold float64) Convergence {
	latest := make([]float64, 0, len(periods))
	values := make(map[int]float64, len(periods))
	length := -1

	for _, p := range periods {
		series, ok := maByPeriod[p]
		if !ok || len(series) == 0 || !valid(Last(series)) {
			return Convergence{}
		}
		if length < 0 || len(series) < length {
			length = len(series)
		}
		v := Last(series)
		latest = append(latest, v)
		values[p] = v
	}
	if len(latest) == 0 {
		return Convergence{}
	}

	spread := Spread(latest)
	if math.IsInf(spread, 1) {
		return Convergence{Values: values}
	}
	c := Convergence{
		Available: true,
		Converged: spread <= threshold,
		Aligned:   true,
		SpreadPct: Round(spread*100, 2),
		Values:    values,
	}

	for i := 0; i+1 < len(latest); i++ {
		if !(latest[i] > latest[i+1]) {
			c.Aligned = false
			break
		}
	}

	if length >= 5 {
		spreads := make([]float64, 0, 3)
		for back := 0; back < 3; back++ {
			vals := make([]float64, 0, len(periods))
			for _, p := range periods {
				series := maByPeriod[p]
				vals = append(vals, series[len(series)-1-back])
			}
			s := Spread(vals)
			if !valid(s) || anyNaN(vals) {
				spreads = nil
				break
			}
			spreads = append(spreads, s)
		}
		c.Diverging = len(spreads) == 3 && spreads[0] > spreads[1] && spreads[1] > spreads[2]
	}

	return c
}

func anyNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
