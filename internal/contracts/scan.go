package contracts

import "time"

// ScanRequest carries caller overrides for one scan.
// nil 포인터 필드는 설정 기본값 사용
type ScanRequest struct {
	MinMarketCap *int64             `json:"min_market_cap,omitempty"`
	TopRank      *int               `json:"top_rank,omitempty"`
	Strategies   []StrategyKind     `json:"strategies,omitempty"`
	Overrides    map[string]float64 `json:"overrides,omitempty"`
	Tickers      []string           `json:"tickers,omitempty"` // 지정 시 유니버스 조회 생략
}

// ScanSummary aggregates one scan
type ScanSummary struct {
	TotalScanned      int                  `json:"total_scanned"`
	TotalSignals      int                  `json:"total_signals"`
	Approved          int                  `json:"approved"`
	Watch             int                  `json:"watch"`
	StrategyBreakdown map[StrategyKind]int `json:"strategy_breakdown"`
	ElapsedSeconds    float64              `json:"elapsed_seconds"`
	MarketPhase       MarketPhase          `json:"market_phase"`
}

// IntersectionSummary counts graded signals
type IntersectionSummary struct {
	S           int    `json:"s_grade"`
	A           int    `json:"a_grade"`
	BPlus       int    `json:"b_plus_grade"`
	B           int    `json:"b_grade"`
	Description string `json:"description"`
}

// ScanResult is the persisted output of one scan
// ⭐ SSOT: 스캔 결과 스냅샷 (파일/DB/API 공통)
type ScanResult struct {
	ScanID          string              `json:"scan_id"`
	ScanTime        time.Time           `json:"scan_time"`
	MarketCondition *MarketCondition    `json:"market_condition"`
	Signals         []*Signal           `json:"signals"`
	Summary         ScanSummary         `json:"summary"`
	Intersection    IntersectionSummary `json:"intersection_summary"`
	ParamsHash      string              `json:"params_hash"`
}

// ProgressState is the orchestrator state machine
type ProgressState string

const (
	StateIdle      ProgressState = "idle"
	StateRunning   ProgressState = "running"
	StateCompleted ProgressState = "completed"
	StateFailed    ProgressState = "failed"
)

// Progress is a point-in-time view of the running scan
type Progress struct {
	State      ProgressState  `json:"state"`
	Percent    int            `json:"percent"`
	Message    string         `json:"message"`
	Strategies map[string]int `json:"strategies"`
	StartedAt  time.Time      `json:"started_at,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Error      string         `json:"error,omitempty"`
}

// Clone copies the strategy map so callers never share it
func (p Progress) Clone() Progress {
	c := p
	c.Strategies = make(map[string]int, len(p.Strategies))
	for k, v := range p.Strategies {
		c.Strategies[k] = v
	}
	return c
}
