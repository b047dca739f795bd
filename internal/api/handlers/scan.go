package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/pkg/logger"
)

// ScanService is satisfied by *scanner.Scanner
type ScanService interface {
	Validate(req contracts.ScanRequest) error
	Run(ctx context.Context, req contracts.ScanRequest) (*contracts.ScanResult, error)
	Running() bool
	Progress() contracts.Progress
	Subscribe() (<-chan contracts.Progress, func())
	Latest(ctx context.Context) (*contracts.ScanResult, error)
	ClassifyMarket(ctx context.Context) (*contracts.MarketCondition, error)
	ScanOneTicker(ctx context.Context, ticker string) ([]*contracts.Signal, error)
}

// ScanHandler handles scan API endpoints
// ⭐ SSOT: 스캔 API 핸들러는 이 구조체에서만
type ScanHandler struct {
	scanner ScanService
	logger  *logger.Logger
	// 백그라운드 스캔은 핸들러당 최대 1개 (대기 고루틴 무제한 증가 방지)
	pending atomic.Bool
}

// NewScanHandler creates a new scan handler
func NewScanHandler(scanner ScanService, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		scanner: scanner,
		logger:  log,
	}
}

// ScanAccepted is returned for async scans
type ScanAccepted struct {
	Status   string             `json:"status"` // started, queued
	Progress contracts.Progress `json:"progress"`
}

// Scan runs a scan synchronously, or in the background with async=true
// GET|POST /api/scan?min_market_cap=&top_rank=&strats=&vars=&tickers=&async=
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	req, err := parseScanRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async {
		if err := h.scanner.Validate(req); err != nil {
			respondError(w, errorStatus(err), err.Error())
			return
		}

		if !h.pending.CompareAndSwap(false, true) {
			respondError(w, http.StatusConflict, "a background scan is already queued or running")
			return
		}

		// 참고용 라벨: 스케줄러/동기 스캔과 경합 시 started여도 잠시 대기할 수 있음
		status := "started"
		if h.scanner.Running() {
			status = "queued"
		}

		go func() {
			defer h.pending.Store(false)
			// 요청 컨텍스트와 분리 (응답 후에도 계속 실행)
			if _, err := h.scanner.Run(context.Background(), req); err != nil {
				h.logger.WithError(err).Warn("Background scan failed")
			}
		}()

		respondJSON(w, http.StatusAccepted, ScanAccepted{
			Status:   status,
			Progress: h.scanner.Progress(),
		})
		return
	}

	result, err := h.scanner.Run(r.Context(), req)
	if err != nil {
		h.logger.WithError(err).Warn("Scan request failed")
		respondError(w, errorStatus(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetProgress returns the current scan progress
// GET /api/progress
func (h *ScanHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scanner.Progress())
}

// GetResults returns the latest scan result, optionally filtered by grade
// GET /api/results?grade=S,A
func (h *ScanHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	result, err := h.scanner.Latest(r.Context())
	if err != nil {
		respondError(w, errorStatus(err), err.Error())
		return
	}

	raw := r.URL.Query().Get("grade")
	if raw == "" {
		respondJSON(w, http.StatusOK, result)
		return
	}

	grades := make(map[contracts.Grade]bool)
	for _, g := range strings.Split(raw, ",") {
		if g = strings.TrimSpace(g); g != "" {
			grades[contracts.Grade(strings.ToUpper(g))] = true
		}
	}

	filtered := *result
	filtered.Signals = make([]*contracts.Signal, 0, len(result.Signals))
	for _, s := range result.Signals {
		if grades[s.Grade] {
			filtered.Signals = append(filtered.Signals, s)
		}
	}

	respondJSON(w, http.StatusOK, filtered)
}

// GetMarket returns the current market regime
// GET /api/market
func (h *ScanHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	mc, err := h.scanner.ClassifyMarket(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to classify market")
		respondError(w, errorStatus(err), "Failed to classify market")
		return
	}

	respondJSON(w, http.StatusOK, mc)
}

// parseScanRequest reads a JSON body (POST) or query parameters
func parseScanRequest(r *http.Request) (contracts.ScanRequest, error) {
	var req contracts.ScanRequest

	if r.Method == http.MethodPost && r.ContentLength > 0 {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return req, fmt.Errorf("invalid request body: %w", err)
		}
		return req, nil
	}

	q := r.URL.Query()

	if v := q.Get("min_market_cap"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return req, fmt.Errorf("invalid min_market_cap: %q", v)
		}
		req.MinMarketCap = &n
	}

	if v := q.Get("top_rank"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid top_rank: %q", v)
		}
		req.TopRank = &n
	}

	if v := q.Get("strats"); v != "" {
		kinds, err := contracts.ParseStrategies(v)
		if err != nil {
			return req, err
		}
		req.Strategies = kinds
	}

	if v := q.Get("vars"); v != "" {
		if err := json.Unmarshal([]byte(v), &req.Overrides); err != nil {
			return req, fmt.Errorf("invalid vars JSON: %w", err)
		}
	}

	if v := q.Get("tickers"); v != "" {
		for _, t := range strings.Split(v, ",") {
			req.Tickers = append(req.Tickers, strings.TrimSpace(t))
		}
	}

	return req, nil
}
