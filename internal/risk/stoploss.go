package risk

import (
	"context"
	"fmt"
	"math"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/indicators"
)

const stopLossDays = 30

// CheckStopLoss evaluates one held position.
// 1) 현재가 <= 손절가 → 즉시 매도
// 2) 현재가 < MA20 → 종가 매도 추천
// 3) 그 외 → 보유 유지
func (c *Classifier) CheckStopLoss(ctx context.Context, ticker string, entry, stop float64) (*contracts.StopLossReport, error) {
	if entry <= 0 {
		return nil, fmt.Errorf("%w: entry price must be positive", contracts.ErrInvalidRequest)
	}

	series, err := c.data.GetSeries(ctx, ticker, stopLossDays)
	if err != nil {
		return nil, fmt.Errorf("stop loss %s: %w", ticker, err)
	}

	current := series.Last().Close
	report := &contracts.StopLossReport{
		Ticker:       ticker,
		Name:         c.data.Name(ctx, ticker),
		CurrentPrice: current,
		EntryPrice:   entry,
		StopLoss:     stop,
		LossPct:      indicators.Round((current-entry)/entry*100, 2),
	}

	ma := indicators.Last(indicators.SMA(series.Closes(), c.config.StopMAPeriod))
	if !math.IsNaN(ma) {
		report.MA20 = indicators.Round(ma, 0)
	}

	switch {
	case current <= stop:
		report.Triggered = true
		report.Action = contracts.ActionSellNow
		report.Reason = fmt.Sprintf("ATR 기반 손절가(%s원) 이탈", comma(math.Trunc(stop)))
	case !math.IsNaN(ma) && current < ma:
		report.Triggered = true
		report.Action = contracts.ActionSellAtClose
		report.Reason = fmt.Sprintf("%d일선(%s원) 종가 이탈", c.config.StopMAPeriod, comma(math.Trunc(ma)))
	default:
		report.Action = contracts.ActionHold
		report.Reason = "손절 조건 미해당"
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker":    ticker,
		"current":   current,
		"stop":      stop,
		"triggered": report.Triggered,
	}).Debug("Stop loss checked")

	return report, nil
}

// StopLossReports checks every position; a failed lookup yields a hold report with the error
func (c *Classifier) StopLossReports(ctx context.Context, positions []contracts.Position) []*contracts.StopLossReport {
	reports := make([]*contracts.StopLossReport, 0, len(positions))
	for _, pos := range positions {
		report, err := c.CheckStopLoss(ctx, pos.Ticker, pos.EntryPrice, pos.StopLoss)
		if err != nil {
			c.logger.WithError(err).WithField("ticker", pos.Ticker).Warn("Stop loss check failed")
			report = &contracts.StopLossReport{
				Ticker:     pos.Ticker,
				Name:       c.data.Name(ctx, pos.Ticker),
				EntryPrice: pos.EntryPrice,
				StopLoss:   pos.StopLoss,
				Action:     contracts.ActionHold,
				Reason:     fmt.Sprintf("데이터 조회 실패: %v", err),
			}
		}
		reports = append(reports, report)
	}
	return reports
}
