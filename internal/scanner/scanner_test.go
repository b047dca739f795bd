package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/grader"
	"github.com/wonny/quantscan/internal/risk"
	"github.com/wonny/quantscan/internal/s0_data/collector"
	"github.com/wonny/quantscan/internal/s0_data/collector/collectortest"
	"github.com/wonny/quantscan/internal/s2_signals"
	"github.com/wonny/quantscan/internal/strategyconfig"
	"github.com/wonny/quantscan/pkg/config"
	"github.com/wonny/quantscan/pkg/logger"
	"github.com/wonny/quantscan/pkg/metrics"
)

// stubEvaluator triggers for the tickers in hits
type stubEvaluator struct {
	kind  contracts.StrategyKind
	hits  map[string]float64
	gate  chan struct{} // non-nil → Evaluate waits until closed
	delay time.Duration

	mu      sync.Mutex
	tickers []string
	params  []strategyconfig.Params

	active    atomic.Int64
	maxActive atomic.Int64
	entered   chan struct{}
}

func newStub(kind contracts.StrategyKind, hits map[string]float64) *stubEvaluator {
	return &stubEvaluator{kind: kind, hits: hits, entered: make(chan struct{}, 64)}
}

func (e *stubEvaluator) Kind() contracts.StrategyKind { return e.kind }

func (e *stubEvaluator) Evaluate(ctx context.Context, ticker string, params strategyconfig.Params) (*contracts.Signal, error) {
	n := e.active.Add(1)
	defer e.active.Add(-1)
	for {
		m := e.maxActive.Load()
		if n <= m || e.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	e.mu.Lock()
	e.tickers = append(e.tickers, ticker)
	e.params = append(e.params, params)
	e.mu.Unlock()

	select {
	case e.entered <- struct{}{}:
	default:
	}
	if e.gate != nil {
		select {
		case <-e.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.delay > 0 {
		time.Sleep(e.delay)
	}

	sig := contracts.NewSignal(ticker, e.kind)
	if conf, ok := e.hits[ticker]; ok {
		sig.Triggered = true
		sig.Confidence = conf
		if conf >= 75 {
			sig.Verdict = contracts.VerdictApproved
		}
	}
	return sig, nil
}

// order returns evaluated tickers in call order
func (e *stubEvaluator) order() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.tickers...)
}

func (e *stubEvaluator) seen() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := append([]string(nil), e.tickers...)
	sort.Strings(out)
	return out
}

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func indexRamp(start, step float64) contracts.Series {
	s := make(contracts.Series, 30)
	for i := range s {
		c := start + step*float64(i)
		s[i] = contracts.PriceBar{Date: day0.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return s
}

func bullData() *collectortest.Fake {
	data := collectortest.New()
	data.SetIndex(collector.IndexKOSPI, indexRamp(2500, 10))
	data.SetIndex(collector.IndexKOSDAQ, indexRamp(800, 3))
	data.Listings = []contracts.Listing{
		{Ticker: "AAA", Name: "에이", MarketCap: 500_000_000_000, Turnover: 300},
		{Ticker: "BBB", Name: "비비", MarketCap: 500_000_000_000, Turnover: 200},
		{Ticker: "CCC", Name: "씨씨", MarketCap: 500_000_000_000, Turnover: 100},
	}
	data.Names["AAA"] = "에이"
	return data
}

type fixture struct {
	scanner *Scanner
	data    *collectortest.Fake
	store   *FileSnapshotStore
	dir     string
}

func newFixture(t *testing.T, data *collectortest.Fake, cfg Config, evaluators ...s2_signals.Evaluator) *fixture {
	t.Helper()
	log := logger.NewNop()
	rec := metrics.New()
	dir := t.TempDir()
	store := NewFileSnapshotStore(dir)

	riskCfg := config.RiskConfig{MarketMAPeriod: 5, BearMaxWeight: 0.3, BearStrategy: "bottom_escape"}
	s := New(Deps{
		Data:      data,
		Engine:    s2_signals.NewEngineWith(data, log, evaluators...),
		Risk:      risk.NewClassifier(data, riskCfg, log),
		Grader:    grader.New(data, rec, log),
		Snapshots: store,
		Metrics:   rec,
		Logger:    log,
	}, cfg, strategyconfig.Default())

	return &fixture{scanner: s, data: data, store: store, dir: dir}
}

func TestRun_FullPipeline(t *testing.T) {
	data := bullData()
	data.SetFlow("AAA", &contracts.Flow{Ticker: "AAA", ForeignNet: 10, InstitutionNet: 10})
	pullback := newStub(contracts.StrategyPullback, map[string]float64{"AAA": 80, "BBB": 60})
	breakout := newStub(contracts.StrategyBreakout, map[string]float64{"AAA": 70})
	f := newFixture(t, data, Config{}, pullback, breakout)

	result, err := f.scanner.Run(context.Background(), contracts.ScanRequest{})
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, pullback.seen())
	assert.Equal(t, contracts.PhaseBull, result.MarketCondition.Phase)

	require.Len(t, result.Signals, 3)
	assert.Equal(t, "AAA", result.Signals[0].Ticker)
	assert.Equal(t, contracts.GradeA, result.Signals[0].Grade)
	assert.Equal(t, 80.0, result.Signals[0].Confidence)
	assert.Equal(t, "에이", result.Signals[0].Name)
	assert.Equal(t, 70.0, result.Signals[1].Confidence)
	assert.Equal(t, contracts.GradeB, result.Signals[2].Grade)

	assert.Equal(t, 3, result.Summary.TotalScanned)
	assert.Equal(t, 3, result.Summary.TotalSignals)
	assert.Equal(t, 1, result.Summary.Approved)
	assert.Equal(t, 2, result.Summary.Watch)
	assert.Equal(t, 2, result.Summary.StrategyBreakdown[contracts.StrategyPullback])
	assert.Equal(t, contracts.PhaseBull, result.Summary.MarketPhase)
	assert.Equal(t, 2, result.Intersection.A)
	assert.Equal(t, 1, result.Intersection.B)
	assert.Equal(t, strategyconfig.Hash(strategyconfig.Default()), result.ParamsHash)

	p := f.scanner.Progress()
	assert.Equal(t, contracts.StateCompleted, p.State)
	assert.Equal(t, 100, p.Percent)
	// 전략별 세부 진행률: 평가가 끝난 전략은 모두 100
	for _, k := range contracts.AllStrategies {
		assert.Equal(t, 100, p.Strategies[string(k)], k)
	}

	_, err = os.Stat(filepath.Join(f.dir, SnapshotName(result)))
	assert.NoError(t, err)

	latest, err := f.scanner.Latest(context.Background())
	require.NoError(t, err)
	assert.Same(t, result, latest)
}

func TestRun_ValidationStartsNoWork(t *testing.T) {
	negCap := int64(-1)
	negRank := -5

	tests := []struct {
		name string
		req  contracts.ScanRequest
	}{
		{name: "negative market cap", req: contracts.ScanRequest{MinMarketCap: &negCap}},
		{name: "negative rank", req: contracts.ScanRequest{TopRank: &negRank}},
		{name: "unknown strategy", req: contracts.ScanRequest{Strategies: []contracts.StrategyKind{"moonshot"}}},
		{name: "unknown override", req: contracts.ScanRequest{Overrides: map[string]float64{"nope": 1}}},
		{name: "out of range override", req: contracts.ScanRequest{Overrides: map[string]float64{"breakout.box_lookback": -3}}},
		{name: "blank ticker", req: contracts.ScanRequest{Tickers: []string{" "}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := newStub(contracts.StrategyPullback, nil)
			f := newFixture(t, bullData(), Config{}, ev)

			_, err := f.scanner.Run(context.Background(), tt.req)
			assert.ErrorIs(t, err, contracts.ErrInvalidRequest)
			assert.Empty(t, ev.seen())
			assert.Equal(t, contracts.StateIdle, f.scanner.Progress().State)
		})
	}
}

func TestRun_UnknownStrategyMatchesBothSentinels(t *testing.T) {
	f := newFixture(t, bullData(), Config{})
	_, err := f.scanner.Run(context.Background(), contracts.ScanRequest{Strategies: []contracts.StrategyKind{"x"}})
	assert.ErrorIs(t, err, contracts.ErrInvalidRequest)
	assert.ErrorIs(t, err, contracts.ErrUnknownStrategy)
}

func TestRun_FallbackTickers(t *testing.T) {
	data := bullData()
	data.Listings = nil
	ev := newStub(contracts.StrategyPullback, nil)
	f := newFixture(t, data, Config{}, ev)

	result, err := f.scanner.Run(context.Background(), contracts.ScanRequest{})
	require.NoError(t, err)

	want := append([]string(nil), DefaultFallbackTickers...)
	sort.Strings(want)
	assert.Equal(t, want, ev.seen())
	assert.Equal(t, 5, result.Summary.TotalScanned)
	assert.Empty(t, result.Signals)
	assert.NotNil(t, result.Signals)
}

func TestRun_RequestTickersSkipUniverse(t *testing.T) {
	ev := newStub(contracts.StrategyPullback, nil)
	f := newFixture(t, bullData(), Config{}, ev)

	_, err := f.scanner.Run(context.Background(), contracts.ScanRequest{Tickers: []string{"ZZZ"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"ZZZ"}, ev.seen())
}

func TestRun_BearMarketRestrictsStrategies(t *testing.T) {
	data := bullData()
	data.Indexes = map[string]contracts.Series{} // 지수 없음 → BEAR
	pullback := newStub(contracts.StrategyPullback, nil)
	bottom := newStub(contracts.StrategyBottomEscape, nil)
	f := newFixture(t, data, Config{}, pullback, bottom)

	result, err := f.scanner.Run(context.Background(), contracts.ScanRequest{})
	require.NoError(t, err)
	assert.Equal(t, contracts.PhaseBear, result.MarketCondition.Phase)
	assert.Empty(t, pullback.seen())
	assert.Len(t, bottom.seen(), 3)

	// 요청에 전략을 지정하면 국면 제한보다 우선
	_, err = f.scanner.Run(context.Background(), contracts.ScanRequest{
		Strategies: []contracts.StrategyKind{contracts.StrategyPullback},
	})
	require.NoError(t, err)
	assert.Len(t, pullback.seen(), 3)
}

func TestRun_OverridesAreScopedToOneScan(t *testing.T) {
	ev := newStub(contracts.StrategyPullback, nil)
	f := newFixture(t, bullData(), Config{}, ev)

	first, err := f.scanner.Run(context.Background(), contracts.ScanRequest{
		Tickers:   []string{"AAA"},
		Overrides: map[string]float64{"breakout.box_lookback": 40},
	})
	require.NoError(t, err)
	second, err := f.scanner.Run(context.Background(), contracts.ScanRequest{Tickers: []string{"AAA"}})
	require.NoError(t, err)

	require.Len(t, ev.params, 2)
	assert.Equal(t, 40, ev.params[0].Breakout.BoxLookback)
	assert.Equal(t, 60, ev.params[1].Breakout.BoxLookback)
	assert.NotEqual(t, first.ParamsHash, second.ParamsHash)
}

func TestRun_WorkerPoolIsBounded(t *testing.T) {
	data := bullData()
	tickers := make([]string, 12)
	for i := range tickers {
		tickers[i] = string(rune('A'+i)) + "00"
	}
	ev := newStub(contracts.StrategyPullback, nil)
	ev.delay = 10 * time.Millisecond
	f := newFixture(t, data, Config{Workers: 3}, ev)

	_, err := f.scanner.Run(context.Background(), contracts.ScanRequest{Tickers: tickers})
	require.NoError(t, err)

	assert.Len(t, ev.seen(), 12)
	assert.LessOrEqual(t, ev.maxActive.Load(), int64(3))
}

func TestRun_SecondCallerBlocks(t *testing.T) {
	ev := newStub(contracts.StrategyPullback, nil)
	ev.gate = make(chan struct{})
	f := newFixture(t, bullData(), Config{}, ev)

	firstDone := make(chan error, 1)
	go func() {
		_, err := f.scanner.Run(context.Background(), contracts.ScanRequest{Tickers: []string{"AAA"}})
		firstDone <- err
	}()
	<-ev.entered
	assert.True(t, f.scanner.Running())
	assert.Equal(t, contracts.StateRunning, f.scanner.Progress().State)

	secondDone := make(chan error, 1)
	go func() {
		_, err := f.scanner.Run(context.Background(), contracts.ScanRequest{Tickers: []string{"BBB"}})
		secondDone <- err
	}()

	// 첫 스캔이 끝나기 전에는 두 번째 스캔이 평가를 시작하지 않음
	assert.Never(t, func() bool { return len(ev.order()) > 1 }, 100*time.Millisecond, 10*time.Millisecond)

	close(ev.gate)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)

	assert.Equal(t, []string{"AAA", "BBB"}, ev.order())
	assert.False(t, f.scanner.Running())
	assert.Equal(t, contracts.StateCompleted, f.scanner.Progress().State)
}

func TestRun_WaitingCallerHonoursContext(t *testing.T) {
	ev := newStub(contracts.StrategyPullback, nil)
	ev.gate = make(chan struct{})
	f := newFixture(t, bullData(), Config{}, ev)

	firstDone := make(chan error, 1)
	go func() {
		_, err := f.scanner.Run(context.Background(), contracts.ScanRequest{Tickers: []string{"AAA"}})
		firstDone <- err
	}()
	<-ev.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.scanner.Run(ctx, contracts.ScanRequest{Tickers: []string{"BBB"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(ev.gate)
	require.NoError(t, <-firstDone)
	assert.Equal(t, []string{"AAA"}, ev.order())
}

func TestRun_CancelledScanFails(t *testing.T) {
	ev := newStub(contracts.StrategyPullback, nil)
	ev.gate = make(chan struct{})
	f := newFixture(t, bullData(), Config{}, ev)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.scanner.Run(ctx, contracts.ScanRequest{})
		done <- err
	}()
	<-ev.entered
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	p := f.scanner.Progress()
	assert.Equal(t, contracts.StateFailed, p.State)
	assert.NotEmpty(t, p.Error)

	_, err = f.scanner.Latest(context.Background())
	assert.ErrorIs(t, err, contracts.ErrNoResult)
}

func TestSubscribe(t *testing.T) {
	ev := newStub(contracts.StrategyPullback, map[string]float64{"AAA": 70})
	f := newFixture(t, bullData(), Config{}, ev)

	updates, cancel := f.scanner.Subscribe()
	_, err := f.scanner.Run(context.Background(), contracts.ScanRequest{Tickers: []string{"AAA", "BBB"}})
	require.NoError(t, err)
	cancel()

	var percents, pullbackPercents []int
	var last contracts.Progress
	for p := range updates {
		percents = append(percents, p.Percent)
		if v, ok := p.Strategies["pullback"]; ok {
			pullbackPercents = append(pullbackPercents, v)
		}
		last = p
	}

	assert.Contains(t, percents, percentMarket)
	assert.Contains(t, percents, percentUniverse)
	assert.Contains(t, percents, percentPoolFrom)
	assert.IsNonDecreasing(t, percents)
	assert.Equal(t, contracts.StateCompleted, last.State)
	assert.Equal(t, 100, last.Percent)
	assert.IsNonDecreasing(t, pullbackPercents)
	assert.Contains(t, pullbackPercents, 50, "one of two tickers evaluated")
	assert.Equal(t, 100, last.Strategies["pullback"])

	// cancel은 여러 번 호출해도 안전
	cancel()
}

func TestScanOneTicker(t *testing.T) {
	data := bullData()
	data.SetFlow("AAA", &contracts.Flow{Ticker: "AAA", ForeignNet: 1, InstitutionNet: 1, ProgramNet: 1})
	f := newFixture(t, data, Config{},
		newStub(contracts.StrategyPullback, map[string]float64{"AAA": 80}),
		newStub(contracts.StrategyBreakout, map[string]float64{"AAA": 65}),
		newStub(contracts.StrategyConvergence, map[string]float64{"AAA": 60}),
	)

	signals, err := f.scanner.ScanOneTicker(context.Background(), "AAA")
	require.NoError(t, err)
	require.Len(t, signals, 3)
	for _, s := range signals {
		assert.Equal(t, contracts.GradeS, s.Grade)
	}

	_, err = f.scanner.ScanOneTicker(context.Background(), "")
	assert.ErrorIs(t, err, contracts.ErrInvalidRequest)
}

func TestLatest_ReloadsAndRegradesSnapshot(t *testing.T) {
	data := bullData()
	f := newFixture(t, data, Config{})

	_, err := f.scanner.Latest(context.Background())
	assert.ErrorIs(t, err, contracts.ErrNoResult)

	stale := contracts.NewSignal("AAA", contracts.StrategyPullback)
	stale.Triggered = true
	stale.Confidence = 70
	saved := &contracts.ScanResult{
		ScanID:          "scan_20240102_150405",
		ScanTime:        time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC),
		MarketCondition: &contracts.MarketCondition{Phase: contracts.PhaseBull},
		Signals:         []*contracts.Signal{stale},
	}
	_, err = f.store.Save(context.Background(), saved)
	require.NoError(t, err)

	latest, err := f.scanner.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "scan_20240102_150405", latest.ScanID)
	require.Len(t, latest.Signals, 1)
	assert.Equal(t, contracts.GradeB, latest.Signals[0].Grade)
	assert.Equal(t, 1, latest.Intersection.B)
}

func TestPersist_WritesRepository(t *testing.T) {
	repo := &recordingRepo{}
	f := newFixture(t, bullData(), Config{}, newStub(contracts.StrategyPullback, nil))
	f.scanner.deps.Results = repo

	result, err := f.scanner.Run(context.Background(), contracts.ScanRequest{Tickers: []string{"AAA"}})
	require.NoError(t, err)
	require.Len(t, repo.saved, 1)
	assert.Equal(t, result.ScanID, repo.saved[0].ScanID)
}

type recordingRepo struct {
	saved []*contracts.ScanResult
}

func (r *recordingRepo) SaveResult(_ context.Context, result *contracts.ScanResult) error {
	r.saved = append(r.saved, result)
	return nil
}

func TestGenerateScanID(t *testing.T) {
	assert.Equal(t, "scan_20240102_150405", GenerateScanID(time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)))
}

func TestConfigFrom(t *testing.T) {
	cfg := &config.Config{
		Scan:   config.ScanConfig{Workers: 7, FallbackTickers: []string{"005930"}},
		Filter: config.FilterConfig{MinMarketCap: 1000, TopRank: 50},
	}
	got := ConfigFrom(cfg)
	assert.Equal(t, Config{Workers: 7, FallbackTickers: []string{"005930"}, MinMarketCap: 1000, TopRank: 50}, got)
}
