package quality

import (
	"fmt"

	"github.com/wonny/quantscan/internal/contracts"
)

// QualityGate validates fetched daily series before they are cached
type QualityGate struct {
	config Config
}

// Config holds quality gate thresholds
type Config struct {
	MinPriceCoverage  float64 `yaml:"min_price_coverage"`  // OHLC 정합 봉 비율
	MinVolumeCoverage float64 `yaml:"min_volume_coverage"` // 거래량 > 0 봉 비율 (거래정지일 허용)
	MinOrderCoverage  float64 `yaml:"min_order_coverage"`  // 날짜 오름차순 비율
}

// DefaultConfig returns the thresholds used by the collector
func DefaultConfig() Config {
	return Config{
		MinPriceCoverage:  0.95,
		MinVolumeCoverage: 0.80,
		MinOrderCoverage:  1.0,
	}
}

// Snapshot is the quality verdict for one series
type Snapshot struct {
	Bars         int                `json:"bars"`
	ValidBars    int                `json:"valid_bars"`
	Coverage     map[string]float64 `json:"coverage"`
	QualityScore float64            `json:"quality_score"`
	Passed       bool               `json:"passed"`
	Issues       []string           `json:"issues,omitempty"`
}

// NewQualityGate creates a new QualityGate instance
func NewQualityGate(config Config) *QualityGate {
	return &QualityGate{config: config}
}

// Check validates one series
// ⭐ SSOT: 수집 → 캐시 전 품질 검증
func (g *QualityGate) Check(series contracts.Series) *Snapshot {
	snapshot := &Snapshot{
		Bars:     len(series),
		Coverage: make(map[string]float64),
	}
	if len(series) == 0 {
		snapshot.Issues = append(snapshot.Issues, "empty series")
		return snapshot
	}

	// 1. 커버리지 체크
	priceOK, volumeOK, orderOK := 0, 0, 0
	for i, bar := range series {
		if validOHLC(bar) {
			priceOK++
		}
		if bar.Volume > 0 {
			volumeOK++
		}
		if i == 0 || bar.Date.After(series[i-1].Date) {
			orderOK++
		}
	}

	n := float64(len(series))
	snapshot.Coverage["price"] = float64(priceOK) / n
	snapshot.Coverage["volume"] = float64(volumeOK) / n
	snapshot.Coverage["order"] = float64(orderOK) / n
	snapshot.ValidBars = priceOK

	// 2. 품질 점수 계산
	snapshot.QualityScore = g.calculateScore(snapshot.Coverage)

	// 3. 임계값 판정
	snapshot.Issues = g.violations(snapshot.Coverage)
	snapshot.Passed = len(snapshot.Issues) == 0

	return snapshot
}

// validOHLC reports whether a bar is internally consistent
func validOHLC(b contracts.PriceBar) bool {
	if b.Close <= 0 || b.Low <= 0 || b.High < b.Low {
		return false
	}
	if b.Close < b.Low || b.Close > b.High {
		return false
	}
	// 시가 0은 거래정지 등으로 허용
	return b.Open == 0 || (b.Open >= b.Low && b.Open <= b.High)
}

func (g *QualityGate) violations(coverage map[string]float64) []string {
	var issues []string
	check := func(key string, min float64) {
		if cov := coverage[key]; cov < min {
			issues = append(issues, fmt.Sprintf("%s coverage %.2f < %.2f", key, cov, min))
		}
	}
	check("price", g.config.MinPriceCoverage)
	check("volume", g.config.MinVolumeCoverage)
	check("order", g.config.MinOrderCoverage)
	return issues
}

// calculateScore calculates overall quality score using weighted average
func (g *QualityGate) calculateScore(coverage map[string]float64) float64 {
	// 가중치 (합계 = 1.0)
	weights := map[string]float64{
		"price":  0.50, // 가격 정합성 필수
		"volume": 0.30, // 거래량
		"order":  0.20, // 날짜 순서
	}

	score := 0.0
	for key, weight := range weights {
		if cov, exists := coverage[key]; exists {
			score += cov * weight
		}
	}

	return score
}
