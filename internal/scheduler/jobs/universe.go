package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/quantscan/internal/s1_universe"
	"github.com/wonny/quantscan/pkg/logger"
)

// UniverseBuilder is satisfied by *collector.Collector
type UniverseBuilder interface {
	BuildUniverse(ctx context.Context, minMarketCap int64, topRank int) (*s1_universe.Universe, error)
}

// UniverseJob refreshes the filtered universe (and the ticker name store) before the open
// ⭐ SSOT: Universe 갱신 스케줄은 이 Job에서만
type UniverseJob struct {
	builder      UniverseBuilder
	minMarketCap int64
	topRank      int
	logger       *logger.Logger
}

// NewUniverseJob creates a new universe job
func NewUniverseJob(builder UniverseBuilder, minMarketCap int64, topRank int, log *logger.Logger) *UniverseJob {
	return &UniverseJob{
		builder:      builder,
		minMarketCap: minMarketCap,
		topRank:      topRank,
		logger:       log,
	}
}

// Name returns the job name
func (j *UniverseJob) Name() string {
	return "universe_refresh"
}

// Schedule returns the cron schedule (평일 08:30, 장 시작 전)
func (j *UniverseJob) Schedule() string {
	return "0 30 8 * * 1-5"
}

// Run executes the universe refresh
func (j *UniverseJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled universe refresh")

	universe, err := j.builder.BuildUniverse(ctx, j.minMarketCap, j.topRank)
	if err != nil {
		return fmt.Errorf("build universe: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"total_count":    universe.TotalCount,
		"excluded_count": len(universe.Excluded),
	}).Info("Universe refreshed successfully")

	return nil
}
