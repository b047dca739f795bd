package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/indicators"
	"github.com/wonny/quantscan/internal/s0_data/collector"
	"github.com/wonny/quantscan/pkg/config"
	"github.com/wonny/quantscan/pkg/logger"
)

const (
	indexDays        = 30
	neutralMaxWeight = 0.7
)

// Classifier derives the market regime and guards held positions
// ⭐ SSOT: 시장 국면 판정 / 손절 / 비중 관리는 여기서만
type Classifier struct {
	data   collector.MarketData
	config config.RiskConfig
	logger *logger.Logger
	now    func() time.Time
}

// NewClassifier creates a new risk classifier
func NewClassifier(data collector.MarketData, cfg config.RiskConfig, log *logger.Logger) *Classifier {
	if cfg.MarketMAPeriod <= 0 {
		cfg.MarketMAPeriod = 5
	}
	if cfg.StopMAPeriod <= 0 {
		cfg.StopMAPeriod = 20
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = 14
	}
	if cfg.ATRMultiplier <= 0 {
		cfg.ATRMultiplier = 2.0
	}
	if cfg.BearStrategy == "" {
		cfg.BearStrategy = string(contracts.StrategyBottomEscape)
	}
	return &Classifier{
		data:   data,
		config: cfg,
		logger: log.WithField("module", "risk"),
		now:    time.Now,
	}
}

// ClassifyMarket checks KOSPI/KOSDAQ against their short MA.
// 둘 다 아래 → BEAR, 둘 다 위 → BULL, 혼조 → NEUTRAL
func (c *Classifier) ClassifyMarket(ctx context.Context) (*contracts.MarketCondition, error) {
	mc := &contracts.MarketCondition{
		Phase:             contracts.PhaseNeutral,
		MaxWeight:         1.0,
		AllowedStrategies: append([]contracts.StrategyKind(nil), contracts.AllStrategies...),
		Reasons:           []string{},
		Timestamp:         c.now(),
	}

	mc.KOSPI = c.indexStatus(ctx, collector.IndexKOSPI, "코스피")
	mc.KOSDAQ = c.indexStatus(ctx, collector.IndexKOSDAQ, "코스닥")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, st := range []contracts.IndexStatus{mc.KOSPI, mc.KOSDAQ} {
		switch {
		case !st.Available:
			mc.Reasons = append(mc.Reasons, fmt.Sprintf("⚠️ %s 지수 데이터 없음", st.Name))
		case st.AboveMA:
			mc.Reasons = append(mc.Reasons, fmt.Sprintf("%s %d일선 위 (%s > MA%d %s)",
				st.Name, c.config.MarketMAPeriod, comma(st.Value), c.config.MarketMAPeriod, comma(st.MA)))
		default:
			mc.Reasons = append(mc.Reasons, fmt.Sprintf("⚠️ %s %d일선 이탈 (%s < MA%d %s)",
				st.Name, c.config.MarketMAPeriod, comma(st.Value), c.config.MarketMAPeriod, comma(st.MA)))
		}
	}

	switch {
	case !mc.KOSPI.AboveMA && !mc.KOSDAQ.AboveMA:
		mc.Phase = contracts.PhaseBear
		mc.MaxWeight = c.config.BearMaxWeight
		mc.AllowedStrategies = []contracts.StrategyKind{contracts.StrategyKind(c.config.BearStrategy)}
		mc.Reasons = append(mc.Reasons, fmt.Sprintf("🔴 약세장 감지 - 투자비중 %.0f%% 이하, '%s' 전략만 운용",
			mc.MaxWeight*100, c.config.BearStrategy))
	case mc.KOSPI.AboveMA && mc.KOSDAQ.AboveMA:
		mc.Phase = contracts.PhaseBull
		mc.Reasons = append(mc.Reasons, "🟢 강세장 - 전 전략 운용 가능")
	default:
		mc.MaxWeight = neutralMaxWeight
		mc.Reasons = append(mc.Reasons, "🟡 혼조세 - 투자비중 70% 이하 권고")
	}

	c.logger.WithFields(map[string]interface{}{
		"phase":      mc.Phase,
		"max_weight": mc.MaxWeight,
		"kospi":      mc.KOSPI.Value,
		"kosdaq":     mc.KOSDAQ.Value,
	}).Info("Market classified")

	return mc, nil
}

// indexStatus compares the latest index close with its MA; unavailable on any failure
func (c *Classifier) indexStatus(ctx context.Context, code, name string) contracts.IndexStatus {
	st := contracts.IndexStatus{Code: code, Name: name}

	series, err := c.data.GetIndex(ctx, code, indexDays)
	if err != nil {
		c.logger.WithError(err).WithField("index", code).Warn("Index unavailable")
		return st
	}
	if len(series) < c.config.MarketMAPeriod {
		return st
	}

	ma := indicators.Last(indicators.SMA(series.Closes(), c.config.MarketMAPeriod))
	if math.IsNaN(ma) {
		return st
	}
	st.Value = series.Last().Close
	st.MA = indicators.Round(ma, 2)
	st.AboveMA = st.Value > ma
	st.Available = true
	return st
}

// 원화/지수 표기용 (천 단위 구분)
var printer = message.NewPrinter(language.Korean)

// comma formats a value with thousands separators
func comma(v float64) string {
	return printer.Sprintf("%.0f", v)
}
