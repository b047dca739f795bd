// Package jobs holds the cron jobs registered by the scheduler command.
package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/pkg/logger"
)

// DefaultScanSchedule 평일 장중 5분마다 (초 필드 포함)
const DefaultScanSchedule = "0 */5 9-15 * * 1-5"

// ScanRunner is satisfied by *scanner.Scanner
type ScanRunner interface {
	Run(ctx context.Context, req contracts.ScanRequest) (*contracts.ScanResult, error)
}

// ScanJob runs a default full scan
// ⭐ SSOT: 주기 스캔 스케줄은 이 Job에서만
type ScanJob struct {
	scanner  ScanRunner
	schedule string
	logger   *logger.Logger
}

// NewScanJob creates a new scan job; empty schedule uses DefaultScanSchedule
func NewScanJob(scanner ScanRunner, schedule string, log *logger.Logger) *ScanJob {
	if schedule == "" {
		schedule = DefaultScanSchedule
	}
	return &ScanJob{
		scanner:  scanner,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *ScanJob) Name() string {
	return "market_scan"
}

// Schedule returns the cron schedule
func (j *ScanJob) Schedule() string {
	return j.schedule
}

// Run executes one scan with configured defaults
func (j *ScanJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled scan")

	result, err := j.scanner.Run(ctx, contracts.ScanRequest{})
	if err != nil {
		return fmt.Errorf("scheduled scan: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"scan_id":      result.ScanID,
		"signals":      result.Summary.TotalSignals,
		"intersection": result.Intersection.Description,
	}).Info("Scheduled scan finished")

	return nil
}
