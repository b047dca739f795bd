package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/external/kis"
	"github.com/wonny/quantscan/internal/external/krx"
	"github.com/wonny/quantscan/internal/external/naver"
	"github.com/wonny/quantscan/pkg/logger"
	"github.com/wonny/quantscan/pkg/metrics"
)

// Naver 유니버스 대체 조회 페이지 수 (100종목/페이지)
const naverListingPages = 5

// 지수 코드 → Naver 차트 심볼
var naverIndexSymbols = map[string]string{
	IndexKOSPI:  "KOSPI",
	IndexKOSDAQ: "KOSDAQ",
}

// ErrNoData marks an upstream answer without usable rows
var ErrNoData = errors.New("upstream returned no data")

// LiveSource reads real market data.
// 일봉/시세/호가/수급: KIS → (Naver), 유니버스/지수: KRX → Naver
// 업스트림별 서킷브레이커로 장애 시 빠르게 폴백
type LiveSource struct {
	kis   *kis.Client
	krx   *krx.Client
	naver *naver.Client

	kisBreaker   *gobreaker.CircuitBreaker
	krxBreaker   *gobreaker.CircuitBreaker
	naverBreaker *gobreaker.CircuitBreaker

	metrics *metrics.Recorder
	logger  *logger.Logger
	now     func() time.Time
}

// NewLiveSource wires the three upstream clients behind circuit breakers
func NewLiveSource(kisClient *kis.Client, krxClient *krx.Client, naverClient *naver.Client, breakerTimeout time.Duration, rec *metrics.Recorder, log *logger.Logger) *LiveSource {
	l := log.WithComponent("live_source")
	return &LiveSource{
		kis:          kisClient,
		krx:          krxClient,
		naver:        naverClient,
		kisBreaker:   newBreaker("kis", breakerTimeout, l),
		krxBreaker:   newBreaker("krx", breakerTimeout, l),
		naverBreaker: newBreaker("naver", breakerTimeout, l),
		metrics:      rec,
		logger:       l,
		now:          time.Now,
	}
}

// newBreaker trips after 3 consecutive failures or > 5% failures over 20+ calls
func newBreaker(name string, timeout time.Duration, log *logger.Logger) *gobreaker.CircuitBreaker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			if counts.Requests < 20 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
}

func (s *LiveSource) Name() string { return "live" }

// call runs fn through a breaker and records its latency
func call[T any](s *LiveSource, cb *gobreaker.CircuitBreaker, op string, fn func() (T, error)) (T, error) {
	start := time.Now()
	out, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	s.metrics.RecordUpstream(cb.Name(), op, time.Since(start))

	var zero T
	if err != nil {
		return zero, fmt.Errorf("%s %s: %w", cb.Name(), op, err)
	}
	return out.(T), nil
}

// calendarSpan converts trading days to a calendar window with holiday slack
func calendarSpan(days int) time.Duration {
	return time.Duration(days*3/2+10) * 24 * time.Hour
}

// FetchSeries reads daily bars from KIS, then Naver
func (s *LiveSource) FetchSeries(ctx context.Context, ticker string, days int) (contracts.Series, error) {
	to := s.now()
	from := to.Add(-calendarSpan(days))

	var errs []error
	if s.kis.Configured() {
		series, err := call(s, s.kisBreaker, "series", func() (contracts.Series, error) {
			return s.kis.DailyChart(ctx, ticker, from, to)
		})
		if err == nil && len(series) > 0 {
			return series.Tail(days), nil
		}
		errs = append(errs, orNoData(err))
	}

	series, err := call(s, s.naverBreaker, "series", func() (contracts.Series, error) {
		return s.naver.FetchPrices(ctx, ticker, from, to)
	})
	if err == nil && len(series) > 0 {
		return series.Tail(days), nil
	}
	errs = append(errs, orNoData(err))

	return nil, fmt.Errorf("series %s: %w", ticker, errors.Join(errs...))
}

// FetchQuote reads the current price from KIS
func (s *LiveSource) FetchQuote(ctx context.Context, ticker string) (*contracts.Quote, error) {
	if !s.kis.Configured() {
		return nil, kis.ErrNotConfigured
	}
	return call(s, s.kisBreaker, "quote", func() (*contracts.Quote, error) {
		return s.kis.CurrentPrice(ctx, ticker)
	})
}

// FetchOrderBook reads total ask/bid remaining quantity from KIS
func (s *LiveSource) FetchOrderBook(ctx context.Context, ticker string) (*contracts.OrderBook, error) {
	if !s.kis.Configured() {
		return nil, kis.ErrNotConfigured
	}
	return call(s, s.kisBreaker, "orderbook", func() (*contracts.OrderBook, error) {
		return s.kis.AskingPrice(ctx, ticker)
	})
}

// FetchFlow combines KIS investor + program trading.
// 투자자 동향 실패 시 Naver frgn 페이지, 프로그램 매매 실패는 0으로 둠
// 기관 보유 수량 이력은 실데이터 경로에 없음 (InstitutionHoldings 비어 있음)
func (s *LiveSource) FetchFlow(ctx context.Context, ticker string) (*contracts.Flow, error) {
	flow := &contracts.Flow{Ticker: ticker}

	var investor *kis.InvestorFlow
	err := kis.ErrNotConfigured
	if s.kis.Configured() {
		investor, err = call(s, s.kisBreaker, "investor", func() (*kis.InvestorFlow, error) {
			return s.kis.Investor(ctx, ticker)
		})
	}
	if err == nil {
		flow.ForeignNet = investor.ForeignNet
		flow.InstitutionNet = investor.InstitutionNet
		flow.ForeignOwnPct = investor.ForeignOwnPct
	} else {
		rows, nerr := call(s, s.naverBreaker, "investor", func() ([]naver.InvestorFlowData, error) {
			return s.naver.FetchInvestorFlow(ctx, ticker, 1)
		})
		if nerr != nil || len(rows) == 0 {
			return nil, fmt.Errorf("flow %s: %w", ticker, errors.Join(err, orNoData(nerr)))
		}
		flow.ForeignNet = rows[0].ForeignNet
		flow.InstitutionNet = rows[0].InstitutionNet
		flow.ForeignOwnPct = rows[0].ForeignOwnPct
	}

	if !s.kis.Configured() {
		return flow, nil
	}
	program, err := call(s, s.kisBreaker, "program", func() (*kis.ProgramFlow, error) {
		return s.kis.ProgramTrade(ctx, ticker)
	})
	if err != nil {
		s.logger.WithError(err).WithField("ticker", ticker).Debug("Program trade unavailable")
	} else {
		flow.ProgramBuy = program.Buy
		flow.ProgramSell = program.Sell
		flow.ProgramNet = program.Net
	}

	return flow, nil
}

// FetchListings reads the KRX screen of the latest trading day, then Naver rankings
func (s *LiveSource) FetchListings(ctx context.Context) ([]contracts.Listing, error) {
	listings, err := call(s, s.krxBreaker, "listings", func() ([]contracts.Listing, error) {
		rows, day, err := s.krx.FetchLatestListings(ctx, s.now())
		if err == nil {
			s.logger.WithFields(map[string]interface{}{
				"date":  day.Format("20060102"),
				"count": len(rows),
			}).Info("KRX listings loaded")
		}
		return rows, err
	})
	if err == nil && len(listings) > 0 {
		return listings, nil
	}
	errs := []error{orNoData(err)}

	var all []contracts.Listing
	for _, market := range []string{"KOSPI", "KOSDAQ"} {
		rows, nerr := call(s, s.naverBreaker, "listings", func() ([]contracts.Listing, error) {
			return s.naver.FetchListings(ctx, market, naverListingPages)
		})
		if nerr != nil {
			errs = append(errs, nerr)
			continue
		}
		all = append(all, rows...)
	}
	if len(all) > 0 {
		return all, nil
	}
	return nil, fmt.Errorf("listings: %w", errors.Join(append(errs, ErrNoData)...))
}

// FetchIndex reads index bars from KRX, then the Naver chart
func (s *LiveSource) FetchIndex(ctx context.Context, code string, days int) (contracts.Series, error) {
	to := s.now()
	from := to.Add(-calendarSpan(days))

	series, err := call(s, s.krxBreaker, "index", func() (contracts.Series, error) {
		return s.krx.FetchIndex(ctx, code, from, to)
	})
	if err == nil && len(series) > 0 {
		return series.Tail(days), nil
	}
	errs := []error{orNoData(err)}

	if symbol, ok := naverIndexSymbols[code]; ok {
		series, err = call(s, s.naverBreaker, "index", func() (contracts.Series, error) {
			return s.naver.FetchPrices(ctx, symbol, from, to)
		})
		if err == nil && len(series) > 0 {
			return series.Tail(days), nil
		}
		errs = append(errs, orNoData(err))
	}

	return nil, fmt.Errorf("index %s: %w", code, errors.Join(errs...))
}

func orNoData(err error) error {
	if err == nil {
		return ErrNoData
	}
	return err
}
