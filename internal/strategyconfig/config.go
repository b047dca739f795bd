package strategyconfig

// Params is the immutable parameter snapshot for one scan
// ⭐ SSOT: 전략 파라미터는 이 구조체로만 전달 (전역 변경 금지)
// 주의: map 대신 struct 사용으로 해시 재현성 보장
type Params struct {
	Pullback     PullbackParams     `yaml:"pullback" json:"pullback"`
	BottomEscape BottomEscapeParams `yaml:"bottom_escape" json:"bottom_escape"`
	GoldenCross  GoldenCrossParams  `yaml:"golden_cross" json:"golden_cross"`
	Breakout     BreakoutParams     `yaml:"breakout" json:"breakout"`
	Convergence  ConvergenceParams  `yaml:"convergence" json:"convergence"`
	Risk         RiskParams         `yaml:"risk" json:"risk"`
}

// PullbackParams 눌림목 스윙
type PullbackParams struct {
	ReferenceCandleLookback  int     `yaml:"reference_candle_lookback" json:"reference_candle_lookback"`
	VolumeCliffLookback      int     `yaml:"volume_cliff_lookback" json:"volume_cliff_lookback"`
	VolumeCliffThreshold     float64 `yaml:"volume_cliff_threshold" json:"volume_cliff_threshold"`
	InstitutionHoldTolerance float64 `yaml:"institution_hold_tolerance" json:"institution_hold_tolerance"`
	SupportTolerance         float64 `yaml:"support_tolerance" json:"support_tolerance"`
}

// BottomEscapeParams 바닥 탈출
type BottomEscapeParams struct {
	MAPeriod                int     `yaml:"ma_period" json:"ma_period"`
	RecentBreakoutDays      int     `yaml:"recent_breakout_days" json:"recent_breakout_days"`
	ResistanceZonePct       float64 `yaml:"resistance_zone_pct" json:"resistance_zone_pct"`
	ProfileDays             int     `yaml:"profile_days" json:"profile_days"`
	AccumulationVolumeRatio float64 `yaml:"accumulation_volume_ratio" json:"accumulation_volume_ratio"`
	AccumulationLookback    int     `yaml:"accumulation_lookback" json:"accumulation_lookback"`
}

// GoldenCrossParams 골든크로스
type GoldenCrossParams struct {
	ShortMA         int     `yaml:"short_ma" json:"short_ma"`
	LongMA          int     `yaml:"long_ma" json:"long_ma"`
	CrossWithinDays int     `yaml:"cross_within_days" json:"cross_within_days"`
	SlopeLookback   int     `yaml:"slope_lookback" json:"slope_lookback"`
	MASlopeMin      float64 `yaml:"ma_slope_min" json:"ma_slope_min"`
	RSIPeriod       int     `yaml:"rsi_period" json:"rsi_period"`
	RSIThreshold    float64 `yaml:"rsi_threshold" json:"rsi_threshold"`
}

// BreakoutParams 박스권 돌파
type BreakoutParams struct {
	BoxLookback      int     `yaml:"box_lookback" json:"box_lookback"`
	BoxTolerance     float64 `yaml:"box_tolerance" json:"box_tolerance"`
	AskBidRatio      float64 `yaml:"ask_bid_ratio" json:"ask_bid_ratio"`
	VolumeSurgeRatio float64 `yaml:"volume_surge_ratio" json:"volume_surge_ratio"`
	VolumeAvgDays    int     `yaml:"volume_avg_days" json:"volume_avg_days"`
}

// ConvergenceParams 이평선 수렴 (정배열 초입)
type ConvergenceParams struct {
	MAPeriods      []int   `yaml:"ma_periods" json:"ma_periods"`
	ConvergencePct float64 `yaml:"convergence_pct" json:"convergence_pct"`
	NearFactor     float64 `yaml:"near_factor" json:"near_factor"`
	IndexCode      string  `yaml:"index_code" json:"index_code"`
	IndexMAPeriod  int     `yaml:"index_ma_period" json:"index_ma_period"`
}

// RiskParams ATR 손절 파라미터
type RiskParams struct {
	ATRPeriod      int     `yaml:"atr_period" json:"atr_period"`
	ATRMultiplier  float64 `yaml:"atr_multiplier" json:"atr_multiplier"`
	ATRFallbackPct float64 `yaml:"atr_fallback_pct" json:"atr_fallback_pct"`
}

// Default returns the baseline parameter set
func Default() Params {
	return Params{
		Pullback: PullbackParams{
			ReferenceCandleLookback:  5,
			VolumeCliffLookback:      10,
			VolumeCliffThreshold:     0.3,
			InstitutionHoldTolerance: 0.05,
			SupportTolerance:         0.02,
		},
		BottomEscape: BottomEscapeParams{
			MAPeriod:                20,
			RecentBreakoutDays:      3,
			ResistanceZonePct:       0.05,
			ProfileDays:             60,
			AccumulationVolumeRatio: 2.0,
			AccumulationLookback:    20,
		},
		GoldenCross: GoldenCrossParams{
			ShortMA:         5,
			LongMA:          20,
			CrossWithinDays: 3,
			SlopeLookback:   5,
			MASlopeMin:      0.0,
			RSIPeriod:       14,
			RSIThreshold:    50.0,
		},
		Breakout: BreakoutParams{
			BoxLookback:      60,
			BoxTolerance:     0.05,
			AskBidRatio:      2.0,
			VolumeSurgeRatio: 2.0,
			VolumeAvgDays:    20,
		},
		Convergence: ConvergenceParams{
			MAPeriods:      []int{5, 20, 60, 120},
			ConvergencePct: 0.03,
			NearFactor:     1.5,
			IndexCode:      "1001",
			IndexMAPeriod:  5,
		},
		Risk: RiskParams{
			ATRPeriod:      14,
			ATRMultiplier:  2.0,
			ATRFallbackPct: 0.02,
		},
	}
}

// Clone returns a deep copy (slices included)
func (p Params) Clone() Params {
	out := p
	out.Convergence.MAPeriods = append([]int(nil), p.Convergence.MAPeriods...)
	return out
}

// LongestMA returns the largest convergence MA period
func (p Params) LongestMA() int {
	longest := 0
	for _, period := range p.Convergence.MAPeriods {
		if period > longest {
			longest = period
		}
	}
	return longest
}
