package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/pkg/fileutil"
)

const (
	snapshotPrefix     = "scan_result_"
	snapshotTimeLayout = "20060102_150405"
)

// SnapshotStore persists full scan results for reload after restart
type SnapshotStore interface {
	Save(ctx context.Context, result *contracts.ScanResult) (string, error)
	LoadLatest(ctx context.Context) (*contracts.ScanResult, error)
}

// ResultRepository is an optional secondary sink (Postgres)
type ResultRepository interface {
	SaveResult(ctx context.Context, result *contracts.ScanResult) error
}

// FileSnapshotStore writes scan_result_YYYYMMDD_HHMMSS.json files into dir
type FileSnapshotStore struct {
	dir string
}

// NewFileSnapshotStore creates a store rooted at dir
func NewFileSnapshotStore(dir string) *FileSnapshotStore {
	return &FileSnapshotStore{dir: dir}
}

// SnapshotName returns the file name for a scan finished at result.ScanTime
func SnapshotName(result *contracts.ScanResult) string {
	return snapshotPrefix + result.ScanTime.Format(snapshotTimeLayout) + ".json"
}

// Save writes result atomically and returns the file path
func (s *FileSnapshotStore) Save(_ context.Context, result *contracts.ScanResult) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create result dir: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode scan result: %w", err)
	}

	path := filepath.Join(s.dir, SnapshotName(result))
	if err := fileutil.WriteAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// LoadLatest reads the newest snapshot; ErrNoResult when none exist.
// 파일명이 시각 순으로 정렬됨
func (s *FileSnapshotStore) LoadLatest(_ context.Context) (*contracts.ScanResult, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, snapshotPrefix+"*.json"))
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	if len(matches) == 0 {
		return nil, contracts.ErrNoResult
	}
	sort.Strings(matches)
	latest := matches[len(matches)-1]

	data, err := os.ReadFile(latest)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var result contracts.ScanResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", filepath.Base(latest), err)
	}
	return &result, nil
}
