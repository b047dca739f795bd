package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (optional, 스캔 결과 보관용)
	Database DatabaseConfig

	// Redis (optional, 공유 캐시 / 종목명 저장소)
	Redis RedisConfig

	// External APIs
	KIS   KISConfig
	KRX   KRXConfig
	Naver NaverConfig
	HTTP  HTTPConfig

	// Scan pipeline
	Scan   ScanConfig
	Filter FilterConfig
	Risk   RiskConfig
	Cache  CacheConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database URL was configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// KISConfig holds KIS (한국투자증권) API configuration
type KISConfig struct {
	AppKey    string
	AppSecret string
	BaseURL   string
	IsVirtual bool // 모의투자 여부
}

// Configured reports whether KIS credentials exist
func (k KISConfig) Configured() bool {
	return k.AppKey != "" && k.AppSecret != ""
}

// KRXConfig holds KRX data portal configuration
type KRXConfig struct {
	BaseURL string
}

// NaverConfig holds Naver Finance configuration
type NaverConfig struct {
	BaseURL     string // finance.naver.com (HTML)
	ChartURL    string // fchart siseJson
	StockAPIURL string // 시가총액 순위 JSON
}

// HTTPConfig holds upstream HTTP behaviour
type HTTPConfig struct {
	Timeout        time.Duration
	RatePerSecond  float64
	RateBurst      int
	BreakerTimeout time.Duration
}

// ScanConfig holds orchestrator configuration
type ScanConfig struct {
	Workers         int
	ResultDir       string
	Schedule        string // cron spec (초 단위 포함)
	DataSource      string // live, synthetic
	ParamsFile      string
	FallbackTickers []string
}

// FilterConfig holds universe filter defaults
type FilterConfig struct {
	MinMarketCap    int64
	TopRank         int
	ExcludeKeywords []string
}

// RiskConfig holds market regime and sizing rules
type RiskConfig struct {
	MarketMAPeriod    int
	BearMaxWeight     float64
	BearStrategy      string
	ATRPeriod         int
	ATRMultiplier     float64
	MaxPositionWeight float64
	MaxPositions      int
	StopMAPeriod      int
}

// CacheConfig holds collector cache configuration
type CacheConfig struct {
	TTL       time.Duration
	QuoteTTL  time.Duration
	NamesFile string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// External APIs
		KIS: KISConfig{
			AppKey:    getEnv("KIS_APP_KEY", ""),
			AppSecret: getEnv("KIS_APP_SECRET", ""),
			BaseURL:   getEnv("KIS_BASE_URL", "https://openapi.koreainvestment.com:9443"),
			IsVirtual: getEnvAsBool("KIS_IS_VIRTUAL", false),
		},

		KRX: KRXConfig{
			BaseURL: getEnv("KRX_BASE_URL", "http://data.krx.co.kr"),
		},

		Naver: NaverConfig{
			BaseURL:     getEnv("NAVER_BASE_URL", "https://finance.naver.com"),
			ChartURL:    getEnv("NAVER_CHART_URL", "https://fchart.stock.naver.com"),
			StockAPIURL: getEnv("NAVER_STOCK_API_URL", "https://stock.naver.com"),
		},

		HTTP: HTTPConfig{
			Timeout:        getEnvAsDuration("HTTP_TIMEOUT", "10s"),
			RatePerSecond:  getEnvAsFloat("HTTP_RATE_PER_SECOND", 15),
			RateBurst:      getEnvAsInt("HTTP_RATE_BURST", 5),
			BreakerTimeout: getEnvAsDuration("HTTP_BREAKER_TIMEOUT", "30s"),
		},

		Scan: ScanConfig{
			Workers:         getEnvAsInt("SCAN_WORKERS", 5),
			ResultDir:       getEnv("SCAN_RESULT_DIR", "data"),
			Schedule:        getEnv("SCAN_SCHEDULE", "0 */5 9-15 * * 1-5"),
			DataSource:      strings.ToLower(getEnv("DATA_SOURCE", "live")),
			ParamsFile:      getEnv("STRATEGY_PARAMS_FILE", ""),
			FallbackTickers: getEnvAsList("SCAN_FALLBACK_TICKERS", "005930,000660,373220,207940,005380"),
		},

		Filter: FilterConfig{
			MinMarketCap:    getEnvAsInt64("FILTER_MIN_MARKET_CAP", 100_000_000_000),
			TopRank:         getEnvAsInt("FILTER_TOP_RANK", 100),
			ExcludeKeywords: getEnvAsList("FILTER_EXCLUDE_KEYWORDS", "ETF,ETN,KODEX,TIGER,KBSTAR,ARIRANG,SOL,PLUS"),
		},

		Risk: RiskConfig{
			MarketMAPeriod:    getEnvAsInt("RISK_MARKET_MA_PERIOD", 5),
			BearMaxWeight:     getEnvAsFloat("RISK_BEAR_MAX_WEIGHT", 0.30),
			BearStrategy:      getEnv("RISK_BEAR_STRATEGY", "bottom_escape"),
			ATRPeriod:         getEnvAsInt("RISK_ATR_PERIOD", 14),
			ATRMultiplier:     getEnvAsFloat("RISK_ATR_MULTIPLIER", 2.0),
			MaxPositionWeight: getEnvAsFloat("RISK_MAX_POSITION_WEIGHT", 0.10),
			MaxPositions:      getEnvAsInt("RISK_MAX_POSITIONS", 10),
			StopMAPeriod:      getEnvAsInt("RISK_STOP_MA_PERIOD", 20),
		},

		Cache: CacheConfig{
			TTL:       getEnvAsDuration("CACHE_TTL", "600s"),
			QuoteTTL:  getEnvAsDuration("CACHE_QUOTE_TTL", "5s"),
			NamesFile: getEnv("TICKER_NAMES_FILE", "data/ticker_names.json"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are usable
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Scan.DataSource != "live" && c.Scan.DataSource != "synthetic" {
		return fmt.Errorf("DATA_SOURCE must be one of: live, synthetic")
	}

	if c.Scan.Workers <= 0 {
		return fmt.Errorf("SCAN_WORKERS must be positive, got %d", c.Scan.Workers)
	}

	if c.Filter.MinMarketCap < 0 || c.Filter.TopRank < 0 {
		return fmt.Errorf("FILTER_MIN_MARKET_CAP and FILTER_TOP_RANK must not be negative")
	}

	if c.Risk.BearMaxWeight < 0 || c.Risk.BearMaxWeight > 1 {
		return fmt.Errorf("RISK_BEAR_MAX_WEIGHT must be within [0,1]")
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value, dropping blanks
func getEnvAsList(key string, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
