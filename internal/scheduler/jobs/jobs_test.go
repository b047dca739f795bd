package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/s1_universe"
	"github.com/wonny/quantscan/pkg/logger"
)

type fakeScanner struct {
	calls int
	req   contracts.ScanRequest
	err   error
}

func (f *fakeScanner) Run(_ context.Context, req contracts.ScanRequest) (*contracts.ScanResult, error) {
	f.calls++
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &contracts.ScanResult{ScanID: "scan_1"}, nil
}

func TestScanJob(t *testing.T) {
	runner := &fakeScanner{}
	job := NewScanJob(runner, "", logger.NewNop())

	assert.Equal(t, "market_scan", job.Name())
	assert.Equal(t, DefaultScanSchedule, job.Schedule())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, runner.calls)
	assert.Nil(t, runner.req.Strategies)

	assert.Equal(t, "@every 10m", NewScanJob(runner, "@every 10m", logger.NewNop()).Schedule())
}

func TestScanJob_Error(t *testing.T) {
	job := NewScanJob(&fakeScanner{err: contracts.ErrInvalidRequest}, "", logger.NewNop())
	err := job.Run(context.Background())
	assert.ErrorIs(t, err, contracts.ErrInvalidRequest)
}

type fakePurger struct{ n int }

func (f *fakePurger) PurgeExpired() int { return f.n }

func TestCacheCleanupJob(t *testing.T) {
	job := NewCacheCleanupJob(&fakePurger{n: 3}, logger.NewNop())
	assert.Equal(t, "cache_cleanup", job.Name())
	assert.NoError(t, job.Run(context.Background()))
}

type fakeBuilder struct {
	minCap  int64
	topRank int
	err     error
}

func (f *fakeBuilder) BuildUniverse(_ context.Context, minMarketCap int64, topRank int) (*s1_universe.Universe, error) {
	f.minCap, f.topRank = minMarketCap, topRank
	if f.err != nil {
		return nil, f.err
	}
	return &s1_universe.Universe{TotalCount: 2, Excluded: map[string]string{}}, nil
}

func TestUniverseJob(t *testing.T) {
	b := &fakeBuilder{}
	job := NewUniverseJob(b, 100_000_000_000, 100, logger.NewNop())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, int64(100_000_000_000), b.minCap)
	assert.Equal(t, 100, b.topRank)

	b.err = errors.New("krx down")
	assert.ErrorContains(t, job.Run(context.Background()), "krx down")
}
