// Package grader applies the three-stage intersection filter to scan signals.
//
// 1단계 패턴 중첩: 한 종목에 2개 이상 전략 포착
// 2단계 수급 동기화: 외인/기관/프로그램 중 2개 이상 순매수
// 3단계 시장 환경: 코스피 또는 코스닥이 5일선 위
package grader

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/s0_data/collector"
	"github.com/wonny/quantscan/pkg/logger"
	"github.com/wonny/quantscan/pkg/metrics"
)

const (
	// DefaultConcurrency 수급 조회 동시 실행 수
	DefaultConcurrency = 5

	minPatterns  = 2
	minBuyGroups = 2
	sPatterns    = 3

	supplyReasonPrefix = "🚀 수급 가속: "
	phaseUnknown       = "UNKNOWN"
)

// FlowProvider supplies the per-ticker supply/demand summary
type FlowProvider interface {
	GetSupplyDemand(ctx context.Context, ticker string) (*contracts.SupplyDemand, error)
}

// Grader assigns S/A/B+/B grades
// ⭐ SSOT: 교집합 등급 판정은 여기서만 (신뢰도 가산 없음)
type Grader struct {
	flows       FlowProvider
	concurrency int
	metrics     *metrics.Recorder
	logger      *logger.Logger
}

// New creates a grader
func New(flows FlowProvider, rec *metrics.Recorder, log *logger.Logger) *Grader {
	return &Grader{
		flows:       flows,
		concurrency: DefaultConcurrency,
		metrics:     rec,
		logger:      log.WithField("module", "grader"),
	}
}

// stages is the filter outcome for one ticker
type stages struct {
	patterns    []contracts.StrategyKind
	patternOK   bool
	supply      *contracts.SupplyDemand
	supplyOK    bool
	marketOK    bool
	marketPhase string
}

// Grade groups signals by ticker and returns graded copies sorted S, A, B+, B then
// confidence desc. 입력 시그널은 수정하지 않음
func (g *Grader) Grade(ctx context.Context, signals []*contracts.Signal, mc *contracts.MarketCondition) []*contracts.Signal {
	if len(signals) == 0 {
		return []*contracts.Signal{}
	}

	groups := make(map[string][]*contracts.Signal)
	var order []string
	for _, s := range signals {
		if _, ok := groups[s.Ticker]; !ok {
			order = append(order, s.Ticker)
		}
		groups[s.Ticker] = append(groups[s.Ticker], s.Clone())
	}

	results := make(map[string]*stages, len(groups))
	for _, ticker := range order {
		patterns := distinctStrategies(groups[ticker])
		results[ticker] = &stages{
			patterns:    patterns,
			patternOK:   len(patterns) >= minPatterns,
			marketPhase: phaseUnknown,
		}
	}

	g.fetchSupply(ctx, results)

	graded := make([]*contracts.Signal, 0, len(signals))
	for _, ticker := range order {
		st := results[ticker]
		if st.patternOK && st.supplyOK {
			if mc != nil {
				st.marketPhase = string(mc.Phase)
				st.marketOK = mc.AnyIndexAboveMA()
			} else {
				st.marketOK = true
			}
		}
		for _, s := range groups[ticker] {
			apply(s, st)
			g.metrics.RecordGrade(string(s.Grade))
			graded = append(graded, s)
		}
	}

	sort.SliceStable(graded, func(i, j int) bool {
		a, b := graded[i], graded[j]
		if a.Grade.Rank() != b.Grade.Rank() {
			return a.Grade.Rank() < b.Grade.Rank()
		}
		return a.Confidence > b.Confidence
	})

	return graded
}

// fetchSupply loads supply/demand once per ticker that passed stage 1.
// 고루틴마다 서로 다른 stages 에만 기록
func (g *Grader) fetchSupply(ctx context.Context, results map[string]*stages) {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)

	for ticker, st := range results {
		if !st.patternOK {
			continue
		}
		eg.Go(func() error {
			sd, err := g.flows.GetSupplyDemand(ctx, ticker)
			if err != nil {
				// 수급 조회 실패는 2단계 미통과로 처리
				g.logger.WithError(err).WithField("ticker", ticker).Warn("Supply/demand unavailable")
				return nil
			}
			st.supply = sd
			st.supplyOK = sd.BuyCount >= minBuyGroups
			return nil
		})
	}
	_ = eg.Wait()
}

// apply writes the grade overlay onto one signal copy
func apply(s *contracts.Signal, st *stages) {
	all := st.patternOK && st.supplyOK && st.marketOK
	count := len(st.patterns)

	s.MultiStrategyCount = count
	s.MultiStrategies = append([]contracts.StrategyKind(nil), st.patterns...)
	s.ConfidenceBonus = 0
	s.OriginalConfidence = s.Confidence

	fr := &contracts.FilterResults{
		PatternOverlap: st.patternOK,
		PatternCount:   count,
		SupplySync:     st.supplyOK,
		MarketOK:       st.marketOK,
		MarketPhase:    st.marketPhase,
	}

	s.Reasons = withoutSupplyReason(s.Reasons)
	if st.supply != nil {
		fr.SupplyBuyCount = st.supply.BuyCount
		fr.SupplyDetails = st.supply.Details
		acc := st.supply.Acceleration
		s.SupplyAcceleration = &acc
		if acc.Label != "" && acc.Label != collector.CalmSupplyLabel {
			s.Reasons = append([]string{supplyReasonPrefix + acc.Label}, s.Reasons...)
		}
	} else {
		s.SupplyAcceleration = nil
	}
	s.FilterResults = fr

	switch {
	case all && count >= sPatterns:
		s.Grade = contracts.GradeS
		s.GradeLabel = "S급 (3중 교집합 + 수급 + 시장)"
		s.Verdict = contracts.VerdictApproved
	case all:
		s.Grade = contracts.GradeA
		s.GradeLabel = "A급 (교집합 AND 필터 통과)"
		s.Verdict = contracts.VerdictApproved
	case st.patternOK && !st.supplyOK:
		// 수급·시장 모두 미달이면 수급 미달이 우선
		s.Grade = contracts.GradeBPlus
		s.GradeLabel = fmt.Sprintf("패턴 중첩 O / 수급 미달 (%d/%d)", fr.SupplyBuyCount, minBuyGroups)
	case st.patternOK && st.supplyOK && !st.marketOK:
		s.Grade = contracts.GradeBPlus
		s.GradeLabel = "패턴+수급 O / 시장 환경 미달 (하락장)"
	default:
		s.Grade = contracts.GradeB
		s.GradeLabel = "단일 전략"
	}
}

// distinctStrategies keeps first-seen order
func distinctStrategies(group []*contracts.Signal) []contracts.StrategyKind {
	seen := make(map[contracts.StrategyKind]bool, len(group))
	var out []contracts.StrategyKind
	for _, s := range group {
		if !seen[s.Strategy] {
			seen[s.Strategy] = true
			out = append(out, s.Strategy)
		}
	}
	return out
}

// withoutSupplyReason drops a previous grading's supply line so regrading is idempotent
func withoutSupplyReason(reasons []string) []string {
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if !strings.HasPrefix(r, supplyReasonPrefix) {
			out = append(out, r)
		}
	}
	return out
}

// Summarize counts graded signals per grade
func Summarize(graded []*contracts.Signal) contracts.IntersectionSummary {
	var sum contracts.IntersectionSummary
	for _, s := range graded {
		switch s.Grade {
		case contracts.GradeS:
			sum.S++
		case contracts.GradeA:
			sum.A++
		case contracts.GradeBPlus:
			sum.BPlus++
		default:
			sum.B++
		}
	}
	sum.Description = fmt.Sprintf("S급 %d개 · A급 %d개 · B+급 %d개 · 단일 %d개", sum.S, sum.A, sum.BPlus, sum.B)
	return sum
}
