package contracts

// StopLossAction is the exit advice for a held position
type StopLossAction string

const (
	ActionSellNow     StopLossAction = "즉시 매도"
	ActionSellAtClose StopLossAction = "종가 매도 추천"
	ActionHold        StopLossAction = "보유 유지"
)

// Position is a held position
type Position struct {
	Ticker     string  `json:"ticker"`
	EntryPrice float64 `json:"entry_price"`
	StopLoss   float64 `json:"stop_loss"`
	Quantity   int64   `json:"quantity,omitempty"`
	Value      float64 `json:"value,omitempty"` // 평가금액
}

// StopLossReport is the stop-loss check for one position
type StopLossReport struct {
	Ticker       string         `json:"ticker"`
	Name         string         `json:"name"`
	CurrentPrice float64        `json:"current_price"`
	EntryPrice   float64        `json:"entry_price"`
	StopLoss     float64        `json:"stop_loss"`
	MA20         float64        `json:"ma20"`
	LossPct      float64        `json:"loss_pct"`
	Triggered    bool           `json:"triggered"`
	Action       StopLossAction `json:"action"`
	Reason       string         `json:"reason"`
}

// PositionSizing is the sizing advice for a new buy
type PositionSizing struct {
	CanBuy            bool    `json:"can_buy"`
	InvestedRatio     float64 `json:"invested_ratio"`
	MaxWeight         float64 `json:"max_weight"`
	RemainingWeight   float64 `json:"remaining_weight"`
	PositionCount     int     `json:"position_count"`
	MaxPositions      int     `json:"max_positions"`
	SuggestedQuantity int64   `json:"suggested_quantity"`
	SuggestedAmount   float64 `json:"suggested_amount"`
	Reason            string  `json:"reason"`
}
