package strategyconfig

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrUnknownParam is returned for an override key that names no knob
var ErrUnknownParam = errors.New("unknown parameter")

// MaxWindow caps every lookback, period and day-count knob (API daily 최대치와 동일)
const MaxWindow = 500

// ValidationError represents a config validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks all parameter ranges
func Validate(p *Params) error {
	checks := []struct {
		ok    bool
		field string
		msg   string
	}{
		{window(p.Pullback.ReferenceCandleLookback, 1), "pullback.reference_candle_lookback", "must be in [1, 500]"},
		{window(p.Pullback.VolumeCliffLookback, 2), "pullback.volume_cliff_lookback", "must be in [2, 500]"},
		{inOpenUnit(p.Pullback.VolumeCliffThreshold), "pullback.volume_cliff_threshold", "must be in (0, 1]"},
		{p.Pullback.InstitutionHoldTolerance > 0, "pullback.institution_hold_tolerance", "must be > 0"},
		{p.Pullback.SupportTolerance > 0 && p.Pullback.SupportTolerance < 1, "pullback.support_tolerance", "must be in (0, 1)"},

		{window(p.BottomEscape.MAPeriod, 2), "bottom_escape.ma_period", "must be in [2, 500]"},
		{window(p.BottomEscape.RecentBreakoutDays, 1), "bottom_escape.recent_breakout_days", "must be in [1, 500]"},
		{p.BottomEscape.ResistanceZonePct > 0, "bottom_escape.resistance_zone_pct", "must be > 0"},
		{window(p.BottomEscape.ProfileDays, 2), "bottom_escape.profile_days", "must be in [2, 500]"},
		{p.BottomEscape.AccumulationVolumeRatio > 0, "bottom_escape.accumulation_volume_ratio", "must be > 0"},
		{window(p.BottomEscape.AccumulationLookback, 2), "bottom_escape.accumulation_lookback", "must be in [2, 500]"},

		{window(p.GoldenCross.ShortMA, 1), "golden_cross.short_ma", "must be in [1, 500]"},
		{p.GoldenCross.LongMA > p.GoldenCross.ShortMA, "golden_cross.long_ma", "must be greater than short_ma"},
		{p.GoldenCross.LongMA <= MaxWindow, "golden_cross.long_ma", "must be <= 500"},
		{window(p.GoldenCross.CrossWithinDays, 0), "golden_cross.cross_within_days", "must be in [0, 500]"},
		{window(p.GoldenCross.SlopeLookback, 1), "golden_cross.slope_lookback", "must be in [1, 500]"},
		{window(p.GoldenCross.RSIPeriod, 2), "golden_cross.rsi_period", "must be in [2, 500]"},
		{p.GoldenCross.RSIThreshold > 0 && p.GoldenCross.RSIThreshold < 100, "golden_cross.rsi_threshold", "must be in (0, 100)"},

		{window(p.Breakout.BoxLookback, 2), "breakout.box_lookback", "must be in [2, 500]"},
		{inOpenUnit(p.Breakout.BoxTolerance), "breakout.box_tolerance", "must be in (0, 1]"},
		{p.Breakout.AskBidRatio > 0, "breakout.ask_bid_ratio", "must be > 0"},
		{p.Breakout.VolumeSurgeRatio > 0, "breakout.volume_surge_ratio", "must be > 0"},
		{window(p.Breakout.VolumeAvgDays, 1), "breakout.volume_avg_days", "must be in [1, 500]"},

		{p.Convergence.ConvergencePct > 0, "convergence.convergence_pct", "must be > 0"},
		{p.Convergence.NearFactor >= 1, "convergence.near_factor", "must be >= 1"},
		{p.Convergence.IndexCode != "", "convergence.index_code", "required"},
		{window(p.Convergence.IndexMAPeriod, 1), "convergence.index_ma_period", "must be in [1, 500]"},

		{window(p.Risk.ATRPeriod, 1), "risk.atr_period", "must be in [1, 500]"},
		{p.Risk.ATRMultiplier > 0, "risk.atr_multiplier", "must be > 0"},
		{p.Risk.ATRFallbackPct > 0 && p.Risk.ATRFallbackPct < 1, "risk.atr_fallback_pct", "must be in (0, 1)"},
	}

	for _, c := range checks {
		if !c.ok {
			return ValidationError{c.field, c.msg}
		}
	}

	if len(p.Convergence.MAPeriods) < 2 {
		return ValidationError{"convergence.ma_periods", "need at least 2 periods"}
	}
	for i, period := range p.Convergence.MAPeriods {
		if !window(period, 1) {
			return ValidationError{"convergence.ma_periods", "periods must be in [1, 500]"}
		}
		if i > 0 && period <= p.Convergence.MAPeriods[i-1] {
			return ValidationError{"convergence.ma_periods", "periods must be strictly ascending"}
		}
	}

	return nil
}

func window(v, lo int) bool {
	return v >= lo && v <= MaxWindow
}

func inOpenUnit(v float64) bool {
	return v > 0 && v <= 1
}

// knob is one overridable scalar
type knob struct {
	integer bool
	set     func(p *Params, v float64)
}

func intKnob(set func(p *Params, v int)) knob {
	return knob{integer: true, set: func(p *Params, v float64) { set(p, int(v)) }}
}

func floatKnob(set func(p *Params, v float64)) knob {
	return knob{set: set}
}

// knobs lists every flat override key
var knobs = map[string]knob{
	"pullback.reference_candle_lookback":  intKnob(func(p *Params, v int) { p.Pullback.ReferenceCandleLookback = v }),
	"pullback.volume_cliff_lookback":      intKnob(func(p *Params, v int) { p.Pullback.VolumeCliffLookback = v }),
	"pullback.volume_cliff_threshold":     floatKnob(func(p *Params, v float64) { p.Pullback.VolumeCliffThreshold = v }),
	"pullback.institution_hold_tolerance": floatKnob(func(p *Params, v float64) { p.Pullback.InstitutionHoldTolerance = v }),
	"pullback.support_tolerance":          floatKnob(func(p *Params, v float64) { p.Pullback.SupportTolerance = v }),

	"bottom_escape.ma_period":                 intKnob(func(p *Params, v int) { p.BottomEscape.MAPeriod = v }),
	"bottom_escape.recent_breakout_days":      intKnob(func(p *Params, v int) { p.BottomEscape.RecentBreakoutDays = v }),
	"bottom_escape.resistance_zone_pct":       floatKnob(func(p *Params, v float64) { p.BottomEscape.ResistanceZonePct = v }),
	"bottom_escape.profile_days":              intKnob(func(p *Params, v int) { p.BottomEscape.ProfileDays = v }),
	"bottom_escape.accumulation_volume_ratio": floatKnob(func(p *Params, v float64) { p.BottomEscape.AccumulationVolumeRatio = v }),
	"bottom_escape.accumulation_lookback":     intKnob(func(p *Params, v int) { p.BottomEscape.AccumulationLookback = v }),

	"golden_cross.short_ma":          intKnob(func(p *Params, v int) { p.GoldenCross.ShortMA = v }),
	"golden_cross.long_ma":           intKnob(func(p *Params, v int) { p.GoldenCross.LongMA = v }),
	"golden_cross.cross_within_days": intKnob(func(p *Params, v int) { p.GoldenCross.CrossWithinDays = v }),
	"golden_cross.slope_lookback":    intKnob(func(p *Params, v int) { p.GoldenCross.SlopeLookback = v }),
	"golden_cross.ma_slope_min":      floatKnob(func(p *Params, v float64) { p.GoldenCross.MASlopeMin = v }),
	"golden_cross.rsi_period":        intKnob(func(p *Params, v int) { p.GoldenCross.RSIPeriod = v }),
	"golden_cross.rsi_threshold":     floatKnob(func(p *Params, v float64) { p.GoldenCross.RSIThreshold = v }),

	"breakout.box_lookback":       intKnob(func(p *Params, v int) { p.Breakout.BoxLookback = v }),
	"breakout.box_tolerance":      floatKnob(func(p *Params, v float64) { p.Breakout.BoxTolerance = v }),
	"breakout.ask_bid_ratio":      floatKnob(func(p *Params, v float64) { p.Breakout.AskBidRatio = v }),
	"breakout.volume_surge_ratio": floatKnob(func(p *Params, v float64) { p.Breakout.VolumeSurgeRatio = v }),
	"breakout.volume_avg_days":    intKnob(func(p *Params, v int) { p.Breakout.VolumeAvgDays = v }),

	"convergence.convergence_pct": floatKnob(func(p *Params, v float64) { p.Convergence.ConvergencePct = v }),
	"convergence.near_factor":     floatKnob(func(p *Params, v float64) { p.Convergence.NearFactor = v }),
	"convergence.index_ma_period": intKnob(func(p *Params, v int) { p.Convergence.IndexMAPeriod = v }),

	"risk.atr_period":       intKnob(func(p *Params, v int) { p.Risk.ATRPeriod = v }),
	"risk.atr_multiplier":   floatKnob(func(p *Params, v float64) { p.Risk.ATRMultiplier = v }),
	"risk.atr_fallback_pct": floatKnob(func(p *Params, v float64) { p.Risk.ATRFallbackPct = v }),
}

// dashboard short keys (vars JSON)
var aliases = map[string]string{
	"p_lookback":  "pullback.reference_candle_lookback",
	"p_vol":       "pullback.volume_cliff_threshold",
	"b_ma":        "bottom_escape.ma_period",
	"b_vol_ratio": "bottom_escape.accumulation_volume_ratio",
	"g_short":     "golden_cross.short_ma",
	"g_long":      "golden_cross.long_ma",
	"g_rsi":       "golden_cross.rsi_threshold",
	"br_lookback": "breakout.box_lookback",
	"br_vol":      "breakout.volume_surge_ratio",
	"c_pct":       "convergence.convergence_pct",
}

// KnobNames returns all accepted override keys, sorted
func KnobNames() []string {
	names := make([]string, 0, len(knobs))
	for name := range knobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyOverrides returns a validated copy of base with overrides applied.
// base는 변경되지 않음
func ApplyOverrides(base Params, overrides map[string]float64) (Params, error) {
	out := base.Clone()
	if len(overrides) == 0 {
		return out, nil
	}

	// 결정적 순서로 적용
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, raw := range keys {
		v := overrides[raw]
		key := strings.ToLower(strings.TrimSpace(raw))
		if full, ok := aliases[key]; ok {
			key = full
		}

		k, ok := knobs[key]
		if !ok {
			return Params{}, fmt.Errorf("%w: %q", ErrUnknownParam, raw)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Params{}, ValidationError{key, "must be a finite number"}
		}
		if k.integer && v != math.Trunc(v) {
			return Params{}, ValidationError{key, "must be an integer"}
		}
		// int 변환 전에 범위 차단 (오버플로 방지)
		if k.integer && math.Abs(v) > MaxWindow {
			return Params{}, ValidationError{key, "must be <= 500"}
		}
		k.set(&out, v)
	}

	if err := Validate(&out); err != nil {
		return Params{}, err
	}
	return out, nil
}
