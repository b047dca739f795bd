package s2_signals

import (
	"context"
	"fmt"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/s0_data/collector"
	"github.com/wonny/quantscan/internal/strategyconfig"
	"github.com/wonny/quantscan/pkg/logger"
)

// Evaluator scores one ticker for one strategy
type Evaluator interface {
	Kind() contracts.StrategyKind
	Evaluate(ctx context.Context, ticker string, params strategyconfig.Params) (*contracts.Signal, error)
}

// Engine dispatches tickers to the five strategy evaluators
// ⭐ SSOT: 전략 평가 진입점은 여기서만
type Engine struct {
	evaluators map[contracts.StrategyKind]Evaluator
	data       collector.MarketData
	logger     *logger.Logger
}

// NewEngine wires every strategy against the same market data
func NewEngine(data collector.MarketData, log *logger.Logger) *Engine {
	l := log.WithField("module", "strategy")
	return NewEngineWith(data, l,
		NewPullbackStrategy(data, l),
		NewBottomEscapeStrategy(data, l),
		NewGoldenCrossStrategy(data, l),
		NewBreakoutStrategy(data, l),
		NewConvergenceStrategy(data, l),
	)
}

// NewEngineWith builds an engine from explicit evaluators
func NewEngineWith(data collector.MarketData, log *logger.Logger, evaluators ...Evaluator) *Engine {
	e := &Engine{
		evaluators: make(map[contracts.StrategyKind]Evaluator, len(evaluators)),
		data:       data,
		logger:     log,
	}
	for _, ev := range evaluators {
		e.evaluators[ev.Kind()] = ev
	}
	return e
}

// Evaluate runs a single strategy; triggered signals get a display name
func (e *Engine) Evaluate(ctx context.Context, kind contracts.StrategyKind, ticker string, params strategyconfig.Params) (*contracts.Signal, error) {
	ev, ok := e.evaluators[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", contracts.ErrUnknownStrategy, kind)
	}

	sig, err := ev.Evaluate(ctx, ticker, params)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", kind, ticker, err)
	}
	if sig.Triggered {
		sig.Name = e.data.Name(ctx, ticker)
	}
	return sig, nil
}

// ScanTicker runs kinds (all five when empty) and keeps triggered signals.
// 전략별 오류는 로그만 남기고 건너뜀
func (e *Engine) ScanTicker(ctx context.Context, ticker string, params strategyconfig.Params, kinds []contracts.StrategyKind) []*contracts.Signal {
	return e.ScanTickerNotify(ctx, ticker, params, kinds, nil)
}

// ScanTickerNotify is ScanTicker with a callback after each strategy finishes,
// failed ones included. done may be nil
func (e *Engine) ScanTickerNotify(
	ctx context.Context,
	ticker string,
	params strategyconfig.Params,
	kinds []contracts.StrategyKind,
	done func(kind contracts.StrategyKind),
) []*contracts.Signal {
	if len(kinds) == 0 {
		kinds = contracts.AllStrategies
	}

	var out []*contracts.Signal
	for _, kind := range kinds {
		if ctx.Err() != nil {
			break
		}
		sig, err := e.Evaluate(ctx, kind, ticker, params)
		if done != nil {
			done(kind)
		}
		if err != nil {
			e.logger.WithError(err).WithFields(map[string]interface{}{
				"ticker":   ticker,
				"strategy": kind,
			}).Warn("Strategy evaluation failed")
			continue
		}
		if sig.Triggered {
			out = append(out, sig)
		}
	}
	return out
}
