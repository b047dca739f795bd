package contracts

import "time"

// PriceBar is one daily OHLCV bar
type PriceBar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   int64     `json:"volume"`
	Turnover int64     `json:"turnover,omitempty"` // 거래대금 (원)
}

// Series is a date-ascending list of bars, one per trading day.
// ⭐ SSOT: 수집기 → 지표/전략 간 가격 데이터 전달
// 캐시된 Series는 교체만 되고 수정되지 않음
type Series []PriceBar

// Closes returns close prices
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Highs returns high prices
func (s Series) Highs() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.High
	}
	return out
}

// Lows returns low prices
func (s Series) Lows() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Low
	}
	return out
}

// Volumes returns volumes as float64 for indicator math
func (s Series) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = float64(b.Volume)
	}
	return out
}

// Last returns the most recent bar; zero bar when empty
func (s Series) Last() PriceBar {
	if len(s) == 0 {
		return PriceBar{}
	}
	return s[len(s)-1]
}

// Tail returns the last n bars (all when n >= len)
func (s Series) Tail(n int) Series {
	if n <= 0 {
		return Series{}
	}
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// Listing is one row of the market-cap / turnover screen
type Listing struct {
	Ticker    string  `json:"ticker"`
	Name      string  `json:"name"`
	Market    string  `json:"market"` // KOSPI, KOSDAQ
	Close     float64 `json:"close"`
	MarketCap int64   `json:"market_cap"`
	Turnover  int64   `json:"turnover"`
	Volume    int64   `json:"volume"`
}

// Quote is a current price snapshot
type Quote struct {
	Ticker    string  `json:"ticker"`
	Name      string  `json:"name,omitempty"` // 소스가 종목명을 줄 때만
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"`
	Volume    int64   `json:"volume"`
	Turnover  int64   `json:"turnover"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Strength  float64 `json:"strength,omitempty"` // 체결강도
}

// OrderBook is the aggregated ask/bid remaining quantity
type OrderBook struct {
	Ticker      string  `json:"ticker"`
	TotalAsk    int64   `json:"total_ask"`
	TotalBid    int64   `json:"total_bid"`
	AskBidRatio float64 `json:"ask_bid_ratio"` // ask / max(bid,1)
}

// Flow is the latest investor and program trading flow
type Flow struct {
	Ticker         string  `json:"ticker"`
	ForeignNet     int64   `json:"foreign_net"`
	InstitutionNet int64   `json:"institution_net"`
	ForeignOwnPct  float64 `json:"foreign_own_pct,omitempty"`
	ProgramBuy     int64   `json:"program_buy"`
	ProgramSell    int64   `json:"program_sell"`
	ProgramNet     int64   `json:"program_net"`

	// InstitutionHoldings 기관 보유 수량 이력 (오래된 것부터)
	InstitutionHoldings []float64 `json:"institution_holdings,omitempty"`
}

// Acceleration is the net flow size relative to the day's volume
type Acceleration struct {
	Foreign     float64 `json:"foreign"`
	Institution float64 `json:"institution"`
	Program     float64 `json:"program"`
	Label       string  `json:"label"`
}

// SupplyDemand summarizes which investor groups are net buyers
type SupplyDemand struct {
	Ticker         string           `json:"ticker"`
	ForeignBuy     bool             `json:"foreign_buy"`
	InstitutionBuy bool             `json:"institution_buy"`
	ProgramBuy     bool             `json:"program_buy"`
	BuyCount       int              `json:"buy_count"`
	Acceleration   Acceleration     `json:"acceleration"`
	Details        map[string]int64 `json:"details"`
}

// ProfileBin is one price bin of a volume profile
type ProfileBin struct {
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
	Center float64 `json:"center"`
	Volume float64 `json:"volume"`
	Ratio  float64 `json:"ratio"`
}

// VolumeProfile is volume distributed across price bins, low to high
type VolumeProfile []ProfileBin
