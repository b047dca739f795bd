package risk

import (
	"fmt"
	"math"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/indicators"
)

// ValidatePositionSize sizes a new buy against the regime cap.
// 단일 종목 최대 MaxPositionWeight, 총 비중은 국면별 MaxWeight
func (c *Classifier) ValidatePositionSize(
	capital float64,
	positions []contracts.Position,
	price float64,
	mc *contracts.MarketCondition,
) contracts.PositionSizing {
	invested := 0.0
	for _, p := range positions {
		invested += positionValue(p)
	}
	ratio := 0.0
	if capital > 0 {
		ratio = invested / capital
	}

	maxWeight := 1.0
	if mc != nil {
		maxWeight = mc.MaxWeight
	}
	remaining := math.Max(maxWeight-ratio, 0)

	single := c.config.MaxPositionWeight * capital
	qty := int64(math.Floor(math.Min(single, remaining*capital) / math.Max(price, 1)))
	if qty < 0 {
		qty = 0
	}

	sizing := contracts.PositionSizing{
		InvestedRatio:     indicators.Round(ratio*100, 1),
		MaxWeight:         indicators.Round(maxWeight*100, 0),
		RemainingWeight:   indicators.Round(remaining*100, 1),
		PositionCount:     len(positions),
		MaxPositions:      c.config.MaxPositions,
		SuggestedQuantity: qty,
		SuggestedAmount:   float64(qty) * price,
	}
	sizing.CanBuy = remaining > 0 && len(positions) < c.config.MaxPositions

	switch {
	case remaining <= 0:
		sizing.Reason = fmt.Sprintf("투자비중 한도(%.0f%%) 소진", sizing.MaxWeight)
	case len(positions) >= c.config.MaxPositions:
		sizing.Reason = fmt.Sprintf("최대 보유 종목 수(%d) 도달", c.config.MaxPositions)
	default:
		sizing.Reason = fmt.Sprintf("잔여 투자가능비중 %.1f%%", sizing.RemainingWeight)
	}
	return sizing
}

// positionValue prefers the marked value, else entry x quantity
func positionValue(p contracts.Position) float64 {
	if p.Value > 0 {
		return p.Value
	}
	return p.EntryPrice * float64(p.Quantity)
}
