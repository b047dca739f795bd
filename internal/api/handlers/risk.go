package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/pkg/logger"
)

// RiskService is satisfied by *risk.Classifier
type RiskService interface {
	ClassifyMarket(ctx context.Context) (*contracts.MarketCondition, error)
	StopLossReports(ctx context.Context, positions []contracts.Position) []*contracts.StopLossReport
	ValidatePositionSize(capital float64, positions []contracts.Position, price float64, mc *contracts.MarketCondition) contracts.PositionSizing
}

// RiskHandler handles risk API endpoints
// ⭐ SSOT: 손절/비중 API 핸들러는 이 구조체에서만
type RiskHandler struct {
	risk   RiskService
	logger *logger.Logger
}

// NewRiskHandler creates a new risk handler
func NewRiskHandler(risk RiskService, log *logger.Logger) *RiskHandler {
	return &RiskHandler{
		risk:   risk,
		logger: log,
	}
}

// StopLossRequest is the body of POST /api/stoploss
type StopLossRequest struct {
	Positions []contracts.Position `json:"positions"`
}

// PositionSizeRequest is the body of POST /api/position-size
type PositionSizeRequest struct {
	Capital   float64              `json:"capital"`
	Price     float64              `json:"price"`
	Positions []contracts.Position `json:"positions"`
}

// PositionSizeResponse pairs the sizing advice with the regime it used
type PositionSizeResponse struct {
	Sizing          contracts.PositionSizing   `json:"sizing"`
	MarketCondition *contracts.MarketCondition `json:"market_condition,omitempty"`
}

// CheckStopLoss checks every held position against its stop
// POST /api/stoploss
func (h *RiskHandler) CheckStopLoss(w http.ResponseWriter, r *http.Request) {
	var req StopLossRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if len(req.Positions) == 0 {
		respondError(w, http.StatusBadRequest, "positions are required")
		return
	}
	for _, p := range req.Positions {
		if p.Ticker == "" || p.EntryPrice <= 0 {
			respondError(w, http.StatusBadRequest, "each position needs ticker and entry_price")
			return
		}
	}

	reports := h.risk.StopLossReports(r.Context(), req.Positions)

	triggered := 0
	for _, rep := range reports {
		if rep.Triggered {
			triggered++
		}
	}

	h.logger.WithFields(map[string]interface{}{
		"positions": len(reports),
		"triggered": triggered,
	}).Info("Stop-loss check completed")

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"triggered": triggered,
		"data":      reports,
	})
}

// PositionSize sizes a new buy under the current regime
// POST /api/position-size
func (h *RiskHandler) PositionSize(w http.ResponseWriter, r *http.Request) {
	var req PositionSizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Capital <= 0 || req.Price <= 0 {
		respondError(w, http.StatusBadRequest, "capital and price must be positive")
		return
	}

	// 시장 판단 실패 시 국면 상한 없이 계산
	mc, err := h.risk.ClassifyMarket(r.Context())
	if err != nil {
		h.logger.WithError(err).Warn("Market classification failed, sizing without regime cap")
		mc = nil
	}

	sizing := h.risk.ValidatePositionSize(req.Capital, req.Positions, req.Price, mc)

	respondJSON(w, http.StatusOK, PositionSizeResponse{
		Sizing:          sizing,
		MarketCondition: mc,
	})
}
