// Package scanner runs the market scan: regime → universe → strategies → grading → snapshot.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/grader"
	"github.com/wonny/quantscan/internal/risk"
	"github.com/wonny/quantscan/internal/s0_data/collector"
	"github.com/wonny/quantscan/internal/s2_signals"
	"github.com/wonny/quantscan/internal/strategyconfig"
	"github.com/wonny/quantscan/pkg/config"
	"github.com/wonny/quantscan/pkg/logger"
	"github.com/wonny/quantscan/pkg/metrics"
)

// DefaultWorkers 동시에 평가하는 종목 수
const DefaultWorkers = 5

// DefaultFallbackTickers 유니버스 조회 실패 시 대형주 5종목
var DefaultFallbackTickers = []string{"005930", "000660", "373220", "207940", "005380"}

// Progress checkpoints
const (
	percentMarket   = 5
	percentUniverse = 15
	percentPoolFrom = 20
	percentPoolTo   = 95
)

// Config holds orchestrator settings
type Config struct {
	Workers         int
	FallbackTickers []string
	MinMarketCap    int64
	TopRank         int
}

// ConfigFrom extracts scanner settings from the app config
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Workers:         cfg.Scan.Workers,
		FallbackTickers: cfg.Scan.FallbackTickers,
		MinMarketCap:    cfg.Filter.MinMarketCap,
		TopRank:         cfg.Filter.TopRank,
	}
}

// Deps are the injected collaborators
type Deps struct {
	Data      collector.MarketData
	Engine    *s2_signals.Engine
	Risk      *risk.Classifier
	Grader    *grader.Grader
	Snapshots SnapshotStore
	Results   ResultRepository // optional
	Metrics   *metrics.Recorder
	Logger    *logger.Logger
}

// Scanner coordinates one scan at a time
// ⭐ SSOT: 스캔 파이프라인 조율은 여기서만
type Scanner struct {
	deps   Deps
	config Config
	params strategyconfig.Params
	logger *logger.Logger

	// 한 번에 하나의 스캔만 실행, 두 번째 호출은 대기
	running chan struct{}

	progress *progressTracker

	latestMu sync.RWMutex
	latest   *contracts.ScanResult

	now func() time.Time
}

// New creates a scanner; params is the base parameter set every scan starts from
func New(deps Deps, cfg Config, params strategyconfig.Params) *Scanner {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if len(cfg.FallbackTickers) == 0 {
		cfg.FallbackTickers = DefaultFallbackTickers
	}
	s := &Scanner{
		deps:    deps,
		config:  cfg,
		params:  params.Clone(),
		logger:  deps.Logger.WithField("module", "scanner"),
		running: make(chan struct{}, 1),
		now:     time.Now,
	}
	s.progress = newProgressTracker(deps.Metrics, s.now)
	return s
}

// plan is the validated, immutable input of one run
type plan struct {
	params       strategyconfig.Params
	strategies   []contracts.StrategyKind // empty → market allowed set
	tickers      []string
	minMarketCap int64
	topRank      int
}

// prepare validates req before any work starts
func (s *Scanner) prepare(req contracts.ScanRequest) (*plan, error) {
	p := &plan{minMarketCap: s.config.MinMarketCap, topRank: s.config.TopRank}

	if req.MinMarketCap != nil {
		if *req.MinMarketCap < 0 {
			return nil, fmt.Errorf("%w: min_market_cap must not be negative", contracts.ErrInvalidRequest)
		}
		p.minMarketCap = *req.MinMarketCap
	}
	if req.TopRank != nil {
		if *req.TopRank < 0 {
			return nil, fmt.Errorf("%w: top_rank must not be negative", contracts.ErrInvalidRequest)
		}
		p.topRank = *req.TopRank
	}

	for _, k := range req.Strategies {
		if !k.Valid() {
			return nil, fmt.Errorf("%w: %w: %s", contracts.ErrInvalidRequest, contracts.ErrUnknownStrategy, k)
		}
	}
	p.strategies = append([]contracts.StrategyKind(nil), req.Strategies...)

	for _, t := range req.Tickers {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil, fmt.Errorf("%w: empty ticker", contracts.ErrInvalidRequest)
		}
		p.tickers = append(p.tickers, t)
	}

	params, err := strategyconfig.ApplyOverrides(s.params, req.Overrides)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contracts.ErrInvalidRequest, err)
	}
	p.params = params

	return p, nil
}

// Validate checks req without running it
func (s *Scanner) Validate(req contracts.ScanRequest) error {
	_, err := s.prepare(req)
	return err
}

// Run executes a full scan. A concurrent caller waits for the running scan to finish.
func (s *Scanner) Run(ctx context.Context, req contracts.ScanRequest) (*contracts.ScanResult, error) {
	p, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	select {
	case s.running <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.running }()

	start := s.now()
	s.progress.start()

	result, err := s.run(ctx, p, start)
	elapsed := s.now().Sub(start)
	if err != nil {
		s.progress.finish(contracts.StateFailed, "스캔 실패", err)
		s.deps.Metrics.RecordScan("failed", elapsed)
		s.logger.WithError(err).Warn("Scan failed")
		return nil, err
	}

	s.progress.finish(contracts.StateCompleted, "스캔 완료", nil)
	s.deps.Metrics.RecordScan("completed", elapsed)
	return result, nil
}

// Running reports whether a scan currently holds the run slot
func (s *Scanner) Running() bool {
	return len(s.running) > 0
}

func (s *Scanner) run(ctx context.Context, p *plan, start time.Time) (*contracts.ScanResult, error) {
	s.logger.WithFields(map[string]interface{}{
		"min_market_cap": p.minMarketCap,
		"top_rank":       p.topRank,
		"strategies":     p.strategies,
		"tickers":        len(p.tickers),
	}).Info("Starting scan")

	// 1. 시장 국면
	s.progress.step(percentMarket, "시장 국면 판정 중")
	mc, err := s.deps.Risk.ClassifyMarket(ctx)
	if err != nil {
		return nil, fmt.Errorf("classify market: %w", err)
	}

	kinds := p.strategies
	if len(kinds) == 0 {
		kinds = mc.AllowedStrategies
	}

	// 2. 유니버스
	s.progress.step(percentUniverse, "유니버스 필터링 중")
	tickers := p.tickers
	if len(tickers) == 0 {
		tickers = s.universe(ctx, p.minMarketCap, p.topRank)
	}

	// 3. 전략 평가
	signals, err := s.evaluate(ctx, tickers, p.params, kinds)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Confidence > signals[j].Confidence
	})
	for _, sig := range signals {
		s.deps.Metrics.RecordSignal(string(sig.Strategy))
	}

	summary := summarize(signals, len(tickers), mc.Phase)

	// 4. 교집합 등급
	s.progress.step(percentPoolTo, "교집합 등급 판정 중")
	graded := s.deps.Grader.Grade(ctx, signals, mc)

	finished := s.now()
	summary.ElapsedSeconds = finished.Sub(start).Seconds()

	result := &contracts.ScanResult{
		ScanID:          GenerateScanID(finished),
		ScanTime:        finished,
		MarketCondition: mc,
		Signals:         graded,
		Summary:         summary,
		Intersection:    grader.Summarize(graded),
		ParamsHash:      strategyconfig.Hash(p.params),
	}

	// 5. 저장
	s.persist(ctx, result)
	s.setLatest(result)

	s.logger.WithFields(map[string]interface{}{
		"scan_id":   result.ScanID,
		"scanned":   summary.TotalScanned,
		"signals":   summary.TotalSignals,
		"approved":  summary.Approved,
		"s_grade":   result.Intersection.S,
		"a_grade":   result.Intersection.A,
		"elapsed_s": summary.ElapsedSeconds,
	}).Info("Scan completed")

	return result, nil
}

// universe resolves the ticker list; any failure falls back to the large-cap list
func (s *Scanner) universe(ctx context.Context, minMarketCap int64, topRank int) []string {
	listings, err := s.deps.Data.GetUniverse(ctx, minMarketCap, topRank)
	if err != nil || len(listings) == 0 {
		s.logger.WithError(err).WithField("fallback", s.config.FallbackTickers).Warn("Universe unavailable, using fallback tickers")
		s.deps.Metrics.RecordFallback("universe")
		return append([]string(nil), s.config.FallbackTickers...)
	}

	tickers := make([]string, 0, len(listings))
	for _, l := range listings {
		tickers = append(tickers, l.Ticker)
	}
	return tickers
}

// evaluate fans tickers out to a bounded worker pool (channel + WaitGroup)
func (s *Scanner) evaluate(ctx context.Context, tickers []string, params strategyconfig.Params, kinds []contracts.StrategyKind) ([]*contracts.Signal, error) {
	total := len(tickers)
	s.progress.step(percentPoolFrom, fmt.Sprintf("종목 분석 중 (0/%d)", total))

	workers := s.config.Workers
	if workers > total {
		workers = total
	}

	// 전략별 세부 진행률 (평가 완료 종목 / 전체 종목 × 100)
	evaluated := make(map[contracts.StrategyKind]int, len(kinds))
	s.progress.update(func(pr *contracts.Progress) {
		for _, k := range kinds {
			pr.Strategies[string(k)] = 0
		}
	})
	strategyDone := func(kind contracts.StrategyKind) {
		s.progress.update(func(pr *contracts.Progress) {
			evaluated[kind]++
			pr.Strategies[string(kind)] = evaluated[kind] * 100 / total
		})
	}

	jobs := make(chan string)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		done    int
		signals []*contracts.Signal
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ticker := range jobs {
				found := s.deps.Engine.ScanTickerNotify(ctx, ticker, params, kinds, strategyDone)

				mu.Lock()
				signals = append(signals, found...)
				mu.Unlock()

				// done/evaluated는 progress 락 안에서만 증가 (진행률 단조 증가)
				s.progress.update(func(pr *contracts.Progress) {
					done++
					pr.Percent = percentPoolFrom + done*(percentPoolTo-percentPoolFrom)/total
					pr.Message = fmt.Sprintf("종목 분석 중 (%d/%d)", done, total)
				})
			}
		}()
	}

feed:
	for _, t := range tickers {
		select {
		case jobs <- t:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan interrupted: %w", err)
	}
	if signals == nil {
		signals = []*contracts.Signal{}
	}
	return signals, nil
}

// persist writes the snapshot and the optional DB row; failures are logged only
func (s *Scanner) persist(ctx context.Context, result *contracts.ScanResult) {
	if s.deps.Snapshots != nil {
		path, err := s.deps.Snapshots.Save(ctx, result)
		if err != nil {
			s.logger.WithError(err).WithField("scan_id", result.ScanID).Warn("Failed to write scan snapshot")
		} else {
			s.logger.WithField("path", path).Debug("Scan snapshot written")
		}
	}
	if s.deps.Results != nil {
		if err := s.deps.Results.SaveResult(ctx, result); err != nil {
			s.logger.WithError(err).WithField("scan_id", result.ScanID).Warn("Failed to store scan result")
		}
	}
}

func (s *Scanner) setLatest(result *contracts.ScanResult) {
	s.latestMu.Lock()
	defer s.latestMu.Unlock()
	s.latest = result
}

// summarize counts raw (pre-grade) signals
func summarize(signals []*contracts.Signal, scanned int, phase contracts.MarketPhase) contracts.ScanSummary {
	sum := contracts.ScanSummary{
		TotalScanned:      scanned,
		TotalSignals:      len(signals),
		StrategyBreakdown: make(map[contracts.StrategyKind]int),
		MarketPhase:       phase,
	}
	for _, sig := range signals {
		if sig.Verdict == contracts.VerdictApproved {
			sum.Approved++
		} else {
			sum.Watch++
		}
		sum.StrategyBreakdown[sig.Strategy]++
	}
	return sum
}

// Progress returns the current progress without waiting for the running scan
func (s *Scanner) Progress() contracts.Progress {
	return s.progress.snapshot()
}

// Subscribe streams progress updates until cancel is called
func (s *Scanner) Subscribe() (<-chan contracts.Progress, func()) {
	return s.progress.subscribe()
}

// ClassifyMarket returns the current market regime
func (s *Scanner) ClassifyMarket(ctx context.Context) (*contracts.MarketCondition, error) {
	return s.deps.Risk.ClassifyMarket(ctx)
}

// ScanOneTicker runs all five strategies on one ticker and grades the result
func (s *Scanner) ScanOneTicker(ctx context.Context, ticker string) ([]*contracts.Signal, error) {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: empty ticker", contracts.ErrInvalidRequest)
	}

	mc, err := s.deps.Risk.ClassifyMarket(ctx)
	if err != nil {
		return nil, fmt.Errorf("classify market: %w", err)
	}

	signals := s.deps.Engine.ScanTicker(ctx, ticker, s.params, contracts.AllStrategies)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.deps.Grader.Grade(ctx, signals, mc), nil
}

// Latest returns the last result of this process, or reloads and regrades the newest snapshot
func (s *Scanner) Latest(ctx context.Context) (*contracts.ScanResult, error) {
	s.latestMu.RLock()
	latest := s.latest
	s.latestMu.RUnlock()
	if latest != nil {
		return latest, nil
	}

	if s.deps.Snapshots == nil {
		return nil, contracts.ErrNoResult
	}
	loaded, err := s.deps.Snapshots.LoadLatest(ctx)
	if err != nil {
		if errors.Is(err, contracts.ErrNoResult) {
			return nil, err
		}
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}

	// 저장 당시 등급이 없거나 오래됐을 수 있으므로 재판정
	loaded.Signals = s.deps.Grader.Grade(ctx, loaded.Signals, loaded.MarketCondition)
	loaded.Intersection = grader.Summarize(loaded.Signals)

	s.logger.WithFields(map[string]interface{}{
		"scan_id": loaded.ScanID,
		"signals": len(loaded.Signals),
	}).Info("Latest scan reloaded from snapshot")

	s.latestMu.Lock()
	if s.latest == nil {
		s.latest = loaded
	}
	latest = s.latest
	s.latestMu.Unlock()
	return latest, nil
}

// GenerateScanID generates a scan ID from the finish time
func GenerateScanID(t time.Time) string {
	return fmt.Sprintf("scan_%s", t.Format(snapshotTimeLayout))
}
