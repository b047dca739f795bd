package indicators

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantscan/internal/contracts"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// barsFromCloses builds bars with high/low +-1% around close
func barsFromCloses(closes []float64, volume int64) contracts.Series {
	s := make(contracts.Series, len(closes))
	for i, c := range closes {
		s[i] = contracts.PriceBar{
			Date:   day0.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: volume,
		}
	}
	return s
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.Len(t, got, 5)
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, 2.0, got[2], 1e-9)
	assert.InDelta(t, 4.0, got[4], 1e-9)
}

func TestUndefinedBelowPeriod(t *testing.T) {
	closes := []float64{10, 11, 12, 13}
	bars := barsFromCloses(closes, 1000)

	for name, series := range map[string][]float64{
		"sma": SMA(closes, 5),
		"ema": EMA(closes, 5),
		"atr": ATR(bars, 5),
	} {
		for i, v := range series {
			assert.Truef(t, math.IsNaN(v), "%s[%d] = %v, want NaN", name, i, v)
		}
	}
}

func TestEMA(t *testing.T) {
	got := EMA([]float64{1, 2, 3, 4}, 3)
	// alpha = 0.5: 1 -> 1.5 -> 2.25 -> 3.125
	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, 2.25, got[2], 1e-9)
	assert.InDelta(t, 3.125, got[3], 1e-9)
}

func TestRSI(t *testing.T) {
	t.Run("short history is 50", func(t *testing.T) {
		for _, v := range RSI([]float64{1, 2, 3}, 14) {
			assert.Equal(t, 50.0, v)
		}
	})

	t.Run("zero loss is 50", func(t *testing.T) {
		got := RSI(ramp(30, 100, 1), 14)
		assert.Equal(t, 50.0, Last(got))
	})

	t.Run("mixed moves stay in range", func(t *testing.T) {
		values := make([]float64, 40)
		for i := range values {
			values[i] = 100 + float64(i%3) - float64(i%5)*0.5
		}
		for _, v := range RSI(values, 14) {
			assert.True(t, v >= 0 && v <= 100)
		}
	})

	t.Run("mostly rising is above 50", func(t *testing.T) {
		values := []float64{100}
		for i := 1; i < 40; i++ {
			step := 2.0
			if i%4 == 0 {
				step = -1
			}
			values = append(values, values[i-1]+step)
		}
		assert.Greater(t, Last(RSI(values, 14)), 50.0)
	})
}

func TestATR(t *testing.T) {
	bars := contracts.Series{
		{High: 10, Low: 8, Close: 9},
		{High: 12, Low: 9, Close: 11},  // tr = max(3, 3, 0) = 3
		{High: 11, Low: 10, Close: 10}, // tr = max(1, 0, 1) = 1
	}
	got := ATR(bars, 3)
	assert.InDelta(t, 2.0, got[2], 1e-9) // (2+3+1)/3
	assert.InDelta(t, 2.0, LatestATR(bars, 3, 0.02), 1e-9)
	assert.InDelta(t, 0.2, LatestATR(bars, 14, 0.02), 1e-9)
}

func TestSlopePct(t *testing.T) {
	assert.Equal(t, 0.0, SlopePct([]float64{1, 2}, 5))
	assert.InDelta(t, 10.0, SlopePct([]float64{100, 101, 102, 103, 104, 110}, 5), 1e-9)
	assert.Equal(t, 0.0, SlopePct([]float64{math.NaN(), 1, 2, 3, 4, 5}, 5))
}

func TestDetectCross(t *testing.T) {
	golden := DetectCross([]float64{9, 11}, []float64{10, 10})
	assert.True(t, golden.Golden)
	assert.False(t, golden.Dead)

	dead := DetectCross([]float64{11, 9}, []float64{10, 10})
	assert.True(t, dead.Dead)
	assert.False(t, dead.Golden)

	assert.Equal(t, Cross{}, DetectCross([]float64{1}, []float64{1}))
}

func TestDetectCrossNeverBoth(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		short := []float64{float64(rng.Intn(5)), float64(rng.Intn(5))}
		long := []float64{float64(rng.Intn(5)), float64(rng.Intn(5))}
		c := DetectCross(short, long)
		require.Falsef(t, c.Golden && c.Dead, "both crosses for short=%v long=%v", short, long)
	}
}

func TestGoldenCrossWithin(t *testing.T) {
	short := []float64{9, 11, 12, 13, 14}
	long := []float64{10, 10, 10, 10, 10}

	assert.False(t, DetectCross(short, long).Golden)
	assert.True(t, GoldenCrossWithin(short, long, 3))
	assert.False(t, GoldenCrossWithin(short, long, 2))
}

func TestMAConvergence(t *testing.T) {
	periods := []int{5, 20, 60, 120}
	single := func(vals ...float64) map[int][]float64 {
		m := make(map[int][]float64)
		for i, p := range periods {
			m[p] = []float64{vals[i]}
		}
		return m
	}

	tight := MAConvergence(single(103, 102, 101, 100), periods, 0.03)
	assert.True(t, tight.Available)
	assert.True(t, tight.Converged)
	assert.True(t, tight.Aligned)
	assert.Equal(t, 3.0, tight.SpreadPct)

	wide := MAConvergence(single(110, 102, 101, 100), periods, 0.03)
	assert.False(t, wide.Converged)
	assert.Equal(t, 10.0, wide.SpreadPct)

	notAligned := MAConvergence(single(100, 101, 102, 103), periods, 0.03)
	assert.True(t, notAligned.Converged)
	assert.False(t, notAligned.Aligned)

	missing := MAConvergence(map[int][]float64{5: {1}}, periods, 0.03)
	assert.False(t, missing.Available)
}

func TestMAConvergenceDiverging(t *testing.T) {
	periods := []int{5, 20}
	ma := map[int][]float64{
		5:  {100, 100, 101, 102, 104},
		20: {100, 100, 100, 100, 100},
	}
	assert.True(t, MAConvergence(ma, periods, 0.05).Diverging)

	ma[5] = []float64{100, 100, 104, 102, 101}
	assert.False(t, MAConvergence(ma, periods, 0.05).Diverging)
}

func TestFibonacci(t *testing.T) {
	ret := FibonacciRetracement(200, 100, nil)
	require.Len(t, ret, len(DefaultRetracementLevels))
	assert.Equal(t, 200.0, ret[0].Price)
	assert.Equal(t, 150.0, ret[3].Price)
	assert.Equal(t, 100.0, ret[6].Price)

	ext := FibonacciExtension(200, 100, nil)
	assert.Equal(t, 200.0, ext[0].Price)
	assert.Equal(t, 262.0, ext[2].Price)
	assert.Equal(t, 362.0, ext[4].Price)
}

func TestTargetPrice(t *testing.T) {
	assert.False(t, TargetPrice(barsFromCloses(ramp(10, 100, 1), 1)).HasFirst())

	bars := barsFromCloses(ramp(40, 100, 1), 1000)
	tg := TargetPrice(bars)
	require.True(t, tg.HasFirst())
	require.True(t, tg.HasSecond())
	assert.Greater(t, tg.First, tg.Current)
	assert.Greater(t, tg.Second, tg.First)
}

func TestStopLossAndRiskReward(t *testing.T) {
	assert.Equal(t, 9700.0, StopLoss(10000, 150, 2))
	assert.Equal(t, 2.0, RiskReward(10000, 10600, 9700))
	assert.Equal(t, 100.0, RiskReward(100, 200, 100))
}

func TestFindReferenceCandle(t *testing.T) {
	bars := barsFromCloses(ramp(12, 100, 0), 1000)
	// index 3 sits inside the window (bars[2:7] for lookback 5 and 12 bars)
	bars[3] = contracts.PriceBar{Date: bars[3].Date, Open: 100, High: 120, Low: 98, Close: 115}
	// widest but bearish
	bars[4] = contracts.PriceBar{Date: bars[4].Date, Open: 130, High: 140, Low: 90, Close: 95}
	// outside the window
	bars[10] = contracts.PriceBar{Date: bars[10].Date, Open: 100, High: 200, Low: 90, Close: 190}

	ref, ok := FindReferenceCandle(bars, 5)
	require.True(t, ok)
	assert.Equal(t, 120.0, ref.High)
	assert.Equal(t, 109.0, ref.Center)

	_, ok = FindReferenceCandle(bars[:3], 5)
	assert.False(t, ok)
}

func TestDetectAccumulation(t *testing.T) {
	bars := barsFromCloses(ramp(20, 100, 0), 1000)
	bars[15].Open, bars[15].Close, bars[15].Volume = 100, 104, 10000
	bars[16].Open, bars[16].Close, bars[16].Volume = 104, 100, 10000 // bearish, tiny wick

	got := DetectAccumulation(bars, 20, 2.0)
	require.Len(t, got, 1)
	assert.Equal(t, 104.0, got[0].Close)
	assert.Nil(t, DetectAccumulation(bars[:5], 20, 2.0))
}

func TestDetectBoxRange(t *testing.T) {
	closes := make([]float64, 61)
	for i := range closes {
		closes[i] = 100 + float64(i%5)
	}
	bars := barsFromCloses(closes, 1000)
	bars[60].Close = 102

	box, ok := DetectBoxRange(bars, 60, DefaultBoxTolerance)
	require.True(t, ok)
	assert.False(t, box.Breakout)
	assert.True(t, box.NearTop)

	bars[60].Close = 120
	box, _ = DetectBoxRange(bars, 60, DefaultBoxTolerance)
	assert.True(t, box.Breakout)
	assert.InDelta(t, 104*1.01, box.Top, 1e-9)

	_, ok = DetectBoxRange(bars[:30], 60, DefaultBoxTolerance)
	assert.False(t, ok)

	// 박스는 당일 봉 제외: lookback개만으로는 부족
	_, ok = DetectBoxRange(bars[:60], 60, DefaultBoxTolerance)
	assert.False(t, ok)
}

func TestDetectVolumeCliff(t *testing.T) {
	closes := ramp(10, 110, -1)
	bars := barsFromCloses(closes, 1000)
	bars[7].Volume, bars[8].Volume, bars[9].Volume = 500, 300, 200

	cliff := DetectVolumeCliff(bars, 10, 0.3)
	assert.True(t, cliff.Decreasing)
	assert.True(t, cliff.Cliff)
	assert.True(t, cliff.PriceDeclining)
	assert.True(t, cliff.SellExhaustion)

	bars[9].Volume = 900
	assert.False(t, DetectVolumeCliff(bars, 10, 0.3).Cliff)
	assert.False(t, DetectVolumeCliff(bars[:5], 10, 0.3).Cliff)
}

func TestVolumeProfileAndWall(t *testing.T) {
	bars := contracts.Series{
		{Low: 100, High: 110, Close: 105, Volume: 100},
		{Low: 150, High: 160, Close: 155, Volume: 900},
	}
	profile := VolumeProfile(bars, 6)
	require.Len(t, profile, 6)

	sum := 0.0
	for _, b := range profile {
		sum += b.Ratio
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, 160.0, profile[5].High)

	wall := CheckResistanceWall(profile, 140, 0.15)
	assert.True(t, wall.Present)

	none := CheckResistanceWall(profile, 160, 0.05)
	assert.False(t, none.Present)

	assert.False(t, CheckResistanceWall(nil, 100, 0.05).Present)
}
