package s1_universe

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/pkg/config"
)

// SPAC 판별을 위한 정규식 패턴
var spacPattern = regexp.MustCompile(`(?i)(스팩|SPAC|스펙|\d+호$|제\d+호)`)

// Builder constructs the scan universe from listings
type Builder struct {
	config Config
}

// Config holds universe filter criteria
type Config struct {
	MinMarketCap    int64    `yaml:"min_market_cap"`   // 최소 시가총액 (원), 0이면 미적용
	TopRank         int      `yaml:"top_rank"`         // 거래대금 상위 N, 0이면 미적용
	ExcludeKeywords []string `yaml:"exclude_keywords"` // ETF/ETN 브랜드 키워드
	ExcludeSPAC     bool     `yaml:"exclude_spac"`     // SPAC 제외
	ExcludeAdmin    bool     `yaml:"exclude_admin"`    // 관리종목 제외
}

// ConfigFromFilter builds the default criteria from app config
func ConfigFromFilter(f config.FilterConfig) Config {
	return Config{
		MinMarketCap:    f.MinMarketCap,
		TopRank:         f.TopRank,
		ExcludeKeywords: f.ExcludeKeywords,
		ExcludeSPAC:     true,
		ExcludeAdmin:    true,
	}
}

// Universe is the filtered, turnover-ranked scan target list
type Universe struct {
	Listings   []contracts.Listing `json:"listings"`
	Excluded   map[string]string   `json:"excluded"` // ticker → reason
	TotalCount int                 `json:"total_count"`
}

// Tickers returns the universe tickers in rank order
func (u *Universe) Tickers() []string {
	out := make([]string, len(u.Listings))
	for i, l := range u.Listings {
		out[i] = l.Ticker
	}
	return out
}

// NewBuilder creates a new Universe Builder
func NewBuilder(config Config) *Builder {
	return &Builder{config: config}
}

// WithLimits returns a builder with per-request cap floor and rank limit.
// nil이면 기본값 유지
func (b *Builder) WithLimits(minMarketCap *int64, topRank *int) *Builder {
	cfg := b.config
	if minMarketCap != nil {
		cfg.MinMarketCap = *minMarketCap
	}
	if topRank != nil {
		cfg.TopRank = *topRank
	}
	return &Builder{config: cfg}
}

// Config returns the effective criteria
func (b *Builder) Config() Config {
	return b.config
}

// Build filters listings and ranks them by turnover
// ⭐ SSOT: S0 → S2 유니버스 생성
func (b *Builder) Build(listings []contracts.Listing) *Universe {
	universe := &Universe{
		Listings: make([]contracts.Listing, 0, len(listings)),
		Excluded: make(map[string]string),
	}

	for _, l := range listings {
		if reason := b.checkExclusion(l); reason != "" {
			universe.Excluded[l.Ticker] = reason
			continue
		}
		universe.Listings = append(universe.Listings, l)
	}

	// 거래대금 내림차순, 동률은 종목코드 순
	sort.SliceStable(universe.Listings, func(i, j int) bool {
		a, c := universe.Listings[i], universe.Listings[j]
		if a.Turnover != c.Turnover {
			return a.Turnover > c.Turnover
		}
		return a.Ticker < c.Ticker
	})

	if b.config.TopRank > 0 && len(universe.Listings) > b.config.TopRank {
		for _, l := range universe.Listings[b.config.TopRank:] {
			universe.Excluded[l.Ticker] = fmt.Sprintf("거래대금 순위 밖 (상위 %d)", b.config.TopRank)
		}
		universe.Listings = universe.Listings[:b.config.TopRank]
	}

	universe.TotalCount = len(universe.Listings)
	return universe
}

// checkExclusion checks if a listing should be excluded and returns the reason
func (b *Builder) checkExclusion(l contracts.Listing) string {
	// 우선순위 순서로 체크

	// 1. 관리종목
	if b.config.ExcludeAdmin && isAdminStock(l.Name) {
		return "관리종목"
	}

	// 2. SPAC
	if b.config.ExcludeSPAC && isSPAC(l.Name) {
		return "SPAC"
	}

	// 3. ETF/ETN 등 펀드형
	if kw := matchKeyword(l.Name, b.config.ExcludeKeywords); kw != "" {
		return fmt.Sprintf("펀드형 상품 (%s)", kw)
	}

	// 4. 시가총액 미달
	if b.config.MinMarketCap > 0 && l.MarketCap < b.config.MinMarketCap {
		return fmt.Sprintf("시가총액 미달 (%d억)", l.MarketCap/100_000_000)
	}

	return "" // 통과
}

// matchKeyword returns the first keyword contained in name
func matchKeyword(name string, keywords []string) string {
	upper := strings.ToUpper(name)
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw != "" && strings.Contains(upper, strings.ToUpper(kw)) {
			return kw
		}
	}
	return ""
}

// isSPAC checks if a stock is a SPAC based on name pattern
func isSPAC(name string) bool {
	return spacPattern.MatchString(name)
}

// isAdminStock checks if a stock is under administrative supervision
func isAdminStock(name string) bool {
	// 관리종목 패턴: "관리" 또는 "*" 표시 등
	adminPatterns := []string{"관리", "*"}
	for _, pattern := range adminPatterns {
		if strings.Contains(name, pattern) {
			return true
		}
	}
	return false
}
