package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wonny/quantscan/internal/contracts"
)

// DBTX is the subset of *pgxpool.Pool the repository needs
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores scan results as JSONB rows
// ⭐ SSOT: scan_results 테이블 저장/조회는 여기서만
type PostgresRepository struct {
	db DBTX
}

// NewPostgresRepository creates a new repository
func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ ResultRepository = (*PostgresRepository)(nil)

// SaveResult upserts the whole result keyed by scan id
func (r *PostgresRepository) SaveResult(ctx context.Context, result *contracts.ScanResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode scan result: %w", err)
	}

	var phase string
	if result.MarketCondition != nil {
		phase = string(result.MarketCondition.Phase)
	}

	query := `
		INSERT INTO scan_results (scan_id, scan_time, market_phase, total_signals, params_hash, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (scan_id) DO UPDATE SET
			scan_time     = EXCLUDED.scan_time,
			market_phase  = EXCLUDED.market_phase,
			total_signals = EXCLUDED.total_signals,
			params_hash   = EXCLUDED.params_hash,
			payload       = EXCLUDED.payload
	`

	_, err = r.db.Exec(ctx, query,
		result.ScanID,
		result.ScanTime,
		phase,
		len(result.Signals),
		result.ParamsHash,
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save scan result: %w", err)
	}
	return nil
}

// LoadLatest returns the most recent stored result
func (r *PostgresRepository) LoadLatest(ctx context.Context) (*contracts.ScanResult, error) {
	query := `
		SELECT payload
		FROM scan_results
		ORDER BY scan_time DESC
		LIMIT 1
	`

	var payload []byte
	if err := r.db.QueryRow(ctx, query).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, contracts.ErrNoResult
		}
		return nil, fmt.Errorf("failed to load scan result: %w", err)
	}

	var result contracts.ScanResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode scan result: %w", err)
	}
	return &result, nil
}
