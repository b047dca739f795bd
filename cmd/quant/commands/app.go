package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/joho/godotenv"

	"github.com/wonny/quantscan/internal/external/kis"
	"github.com/wonny/quantscan/internal/external/krx"
	"github.com/wonny/quantscan/internal/external/naver"
	"github.com/wonny/quantscan/internal/grader"
	"github.com/wonny/quantscan/internal/risk"
	"github.com/wonny/quantscan/internal/s0_data/collector"
	"github.com/wonny/quantscan/internal/s1_universe"
	"github.com/wonny/quantscan/internal/s2_signals"
	"github.com/wonny/quantscan/internal/scanner"
	"github.com/wonny/quantscan/internal/strategyconfig"
	"github.com/wonny/quantscan/pkg/config"
	"github.com/wonny/quantscan/pkg/database"
	"github.com/wonny/quantscan/pkg/httputil"
	"github.com/wonny/quantscan/pkg/logger"
	"github.com/wonny/quantscan/pkg/metrics"
	"github.com/wonny/quantscan/pkg/redis"
)

const redisPrefix = "quantscan"

// app holds every wired component a command may need
// ⭐ SSOT: 의존성 조립은 여기서만
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	metrics   *metrics.Recorder
	redis     *redis.Client
	db        *database.DB // nil이면 파일 스냅샷만 사용
	collector *collector.Collector
	engine    *s2_signals.Engine
	risk      *risk.Classifier
	grader    *grader.Grader
	scanner   *scanner.Scanner
}

// loadConfig applies the global flags on top of the environment
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		if err := godotenv.Overload(configFile); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if rootCmd.PersistentFlags().Changed("env") {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if dataSource != "" {
		cfg.Scan.DataSource = dataSource
	}

	return cfg, nil
}

// newApp wires config → logger → sources → collector → strategies → scanner
func newApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	// 2. Initialize logger / metrics
	log := logger.New(cfg)
	rec := metrics.New()

	a := &app{cfg: cfg, log: log, metrics: rec}

	// 3. Redis (optional, 비활성 시 no-op 클라이언트)
	rc, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, using in-process cache only")
		rc = redis.Wrap(nil)
	}
	a.redis = rc

	// 4. Sources
	primary, fallback := a.sources()

	// 5. Collector
	var shared *redis.Cache
	if rc.Enabled() {
		shared = redis.NewCache(rc, redisPrefix)
	}
	a.collector = collector.NewCollector(
		primary,
		fallback,
		collector.NewCache(shared, log),
		a.nameStore(shared),
		collector.Config{
			TTL:      cfg.Cache.TTL,
			QuoteTTL: cfg.Cache.QuoteTTL,
			Universe: s1_universe.ConfigFromFilter(cfg.Filter),
		},
		rec,
		log,
	)

	// 6. Strategies / risk / grader
	params, err := strategyconfig.LoadOrDefault(cfg.Scan.ParamsFile)
	if err != nil {
		return nil, fmt.Errorf("load strategy params: %w", err)
	}
	a.engine = s2_signals.NewEngine(a.collector, log)
	a.risk = risk.NewClassifier(a.collector, cfg.Risk, log)
	a.grader = grader.New(a.collector, rec, log)

	// 7. Result persistence (DB optional)
	var results scanner.ResultRepository
	db, err := database.New(ctx, cfg)
	switch {
	case errors.Is(err, database.ErrDisabled):
		log.Debug("DATABASE_URL not set, scan results kept as files only")
	case err != nil:
		log.WithError(err).Warn("Database unavailable, scan results kept as files only")
	default:
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		a.db = db
		results = scanner.NewPostgresRepository(db.Pool)
		log.Info("Connected to database")
	}

	// 8. Scanner
	a.scanner = scanner.New(scanner.Deps{
		Data:      a.collector,
		Engine:    a.engine,
		Risk:      a.risk,
		Grader:    a.grader,
		Snapshots: scanner.NewFileSnapshotStore(cfg.Scan.ResultDir),
		Results:   results,
		Metrics:   rec,
		Logger:    log,
	}, scanner.ConfigFrom(cfg), params)

	log.WithFields(map[string]interface{}{
		"source":      a.collector.SourceName(),
		"workers":     cfg.Scan.Workers,
		"params_hash": strategyconfig.Hash(params),
		"redis":       rc.Enabled(),
		"database":    a.db != nil,
	}).Debug("Application wired")

	return a, nil
}

// sources picks primary/fallback adapters for DATA_SOURCE
func (a *app) sources() (collector.Source, collector.Source) {
	synthetic := collector.NewSyntheticSource()
	if a.cfg.Scan.DataSource == "synthetic" {
		return synthetic, nil
	}

	// 업스트림별 HTTP 클라이언트 (프로세스 간 레이트 리밋 분리)
	limiter := redis.NewRateLimiter(a.redis, redisPrefix)
	kisHTTP := httputil.New(a.cfg, a.log).WithRateLimiter(limiter, redis.KISRateLimit)
	krxHTTP := httputil.New(a.cfg, a.log).WithRateLimiter(limiter, redis.KRXRateLimit)
	naverHTTP := httputil.New(a.cfg, a.log).WithRateLimiter(limiter, redis.NaverRateLimit)

	live := collector.NewLiveSource(
		kis.NewClient(a.cfg.KIS, kisHTTP, a.log),
		krx.NewClient(a.cfg.KRX, krxHTTP, a.log),
		naver.NewClient(a.cfg.Naver, naverHTTP, a.log),
		a.cfg.HTTP.BreakerTimeout,
		a.metrics,
		a.log,
	)
	return live, synthetic
}

// nameStore prefers Redis, then the JSON file, then memory
func (a *app) nameStore(shared *redis.Cache) collector.NameStore {
	switch {
	case shared != nil:
		return collector.NewRedisNameStore(shared)
	case a.cfg.Cache.NamesFile != "":
		return collector.NewFileNameStore(a.cfg.Cache.NamesFile)
	default:
		return collector.NewMemoryNameStore()
	}
}

// Close releases DB and Redis connections
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Debug("Redis close failed")
		}
	}
}
