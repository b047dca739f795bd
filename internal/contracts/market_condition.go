package contracts

import "time"

// MarketPhase is the market regime
type MarketPhase string

const (
	PhaseBull    MarketPhase = "BULL"
	PhaseBear    MarketPhase = "BEAR"
	PhaseNeutral MarketPhase = "NEUTRAL"
	PhaseUnknown MarketPhase = "UNKNOWN"
)

// IndexStatus is one index against its short moving average
type IndexStatus struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	MA        float64 `json:"ma"`
	AboveMA   bool    `json:"above_ma"`
	Available bool    `json:"available"`
}

// MarketCondition is the regime snapshot, immutable for one scan
// ⭐ SSOT: 시장 국면 → 전략 허용 목록 / 비중 상한
type MarketCondition struct {
	KOSPI             IndexStatus    `json:"kospi"`
	KOSDAQ            IndexStatus    `json:"kosdaq"`
	Phase             MarketPhase    `json:"market_phase"`
	MaxWeight         float64        `json:"max_weight"`
	AllowedStrategies []StrategyKind `json:"allowed_strategies"`
	Reasons           []string       `json:"reasons"`
	Timestamp         time.Time      `json:"timestamp"`
}

// Allows reports whether kind may run under this regime
func (m *MarketCondition) Allows(kind StrategyKind) bool {
	for _, k := range m.AllowedStrategies {
		if k == kind {
			return true
		}
	}
	return false
}

// AnyIndexAboveMA reports the third intersection stage
func (m *MarketCondition) AnyIndexAboveMA() bool {
	return m.KOSPI.AboveMA || m.KOSDAQ.AboveMA
}
