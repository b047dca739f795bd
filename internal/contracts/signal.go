package contracts

import (
	"fmt"
	"strings"
)

// StrategyKind identifies one of the five pattern strategies
type StrategyKind string

const (
	StrategyPullback     StrategyKind = "pullback"
	StrategyBottomEscape StrategyKind = "bottom_escape"
	StrategyGoldenCross  StrategyKind = "golden_cross"
	StrategyBreakout     StrategyKind = "breakout"
	StrategyConvergence  StrategyKind = "convergence"
)

// AllStrategies lists every strategy in evaluation order
var AllStrategies = []StrategyKind{
	StrategyPullback,
	StrategyBottomEscape,
	StrategyGoldenCross,
	StrategyBreakout,
	StrategyConvergence,
}

var strategyLabels = map[StrategyKind]string{
	StrategyPullback:     "눌림목 스윙",
	StrategyBottomEscape: "바닥 탈출",
	StrategyGoldenCross:  "골든크로스",
	StrategyBreakout:     "박스권 돌파",
	StrategyConvergence:  "이평선 수렴",
}

// Label returns the Korean display name
func (k StrategyKind) Label() string {
	if l, ok := strategyLabels[k]; ok {
		return l
	}
	return string(k)
}

// Valid reports whether k is one of the five strategies
func (k StrategyKind) Valid() bool {
	_, ok := strategyLabels[k]
	return ok
}

// ParseStrategies parses a comma separated list, rejecting unknown keys
func ParseStrategies(raw string) ([]StrategyKind, error) {
	var out []StrategyKind
	seen := make(map[StrategyKind]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k := StrategyKind(part)
		if !k.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, part)
		}
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out, nil
}

// Verdict is the strategy's own recommendation
type Verdict string

const (
	VerdictApproved Verdict = "approved"
	VerdictWatch    Verdict = "watch"
)

// Grade is the intersection grade
type Grade string

const (
	GradeS     Grade = "S"
	GradeA     Grade = "A"
	GradeBPlus Grade = "B+"
	GradeB     Grade = "B"
)

// Rank orders grades S < A < B+ < B (lower is better)
func (g Grade) Rank() int {
	switch g {
	case GradeS:
		return 0
	case GradeA:
		return 1
	case GradeBPlus:
		return 2
	default:
		return 3
	}
}

// Signal is the result of one strategy on one ticker
// ⭐ SSOT: 전략 → 오케스트레이터 → 등급 판정 결과 전달
type Signal struct {
	Ticker        string         `json:"ticker"`
	Name          string         `json:"name"`
	Strategy      StrategyKind   `json:"strategy"`
	StrategyLabel string         `json:"strategy_label"`
	Triggered     bool           `json:"triggered"`
	Confidence    float64        `json:"confidence"` // 0~100
	CurrentPrice  float64        `json:"current_price"`
	Entry1        float64        `json:"entry_price_1"`
	Entry2        float64        `json:"entry_price_2"`
	Target1       float64        `json:"target_price_1"`
	Target2       float64        `json:"target_price_2"`
	StopLoss      float64        `json:"stop_loss"`
	RiskReward    float64        `json:"risk_reward"`
	Reasons       []string       `json:"reasons"`
	Details       map[string]any `json:"details,omitempty"`
	Verdict       Verdict        `json:"verdict"`

	// 교집합 등급 (grader가 채움)
	Grade              Grade          `json:"grade,omitempty"`
	GradeLabel         string         `json:"grade_label,omitempty"`
	FilterResults      *FilterResults `json:"filter_results,omitempty"`
	MultiStrategyCount int            `json:"multi_strategy_count,omitempty"`
	MultiStrategies    []StrategyKind `json:"multi_strategies,omitempty"`
	SupplyAcceleration *Acceleration  `json:"supply_acceleration,omitempty"`
	ConfidenceBonus    float64        `json:"confidence_bonus"`
	OriginalConfidence float64        `json:"original_confidence,omitempty"`
}

// FilterResults records the three intersection stages
type FilterResults struct {
	PatternOverlap bool             `json:"pattern_overlap"`
	PatternCount   int              `json:"pattern_count"`
	SupplySync     bool             `json:"supply_sync"`
	SupplyBuyCount int              `json:"supply_buy_count"`
	SupplyDetails  map[string]int64 `json:"supply_details,omitempty"`
	MarketOK       bool             `json:"market_ok"`
	MarketPhase    string           `json:"market_phase"`
}

// NewSignal returns an untriggered signal for ticker/kind
func NewSignal(ticker string, kind StrategyKind) *Signal {
	return &Signal{
		Ticker:        ticker,
		Strategy:      kind,
		StrategyLabel: kind.Label(),
		Reasons:       []string{},
		Details:       map[string]any{},
		Verdict:       VerdictWatch,
	}
}

// Clone deep-copies the slices and maps a grader may touch
func (s *Signal) Clone() *Signal {
	c := *s
	c.Reasons = append([]string(nil), s.Reasons...)
	if s.Details != nil {
		c.Details = make(map[string]any, len(s.Details))
		for k, v := range s.Details {
			c.Details[k] = v
		}
	}
	c.MultiStrategies = append([]StrategyKind(nil), s.MultiStrategies...)
	if s.FilterResults != nil {
		fr := *s.FilterResults
		c.FilterResults = &fr
	}
	if s.SupplyAcceleration != nil {
		acc := *s.SupplyAcceleration
		c.SupplyAcceleration = &acc
	}
	return &c
}
