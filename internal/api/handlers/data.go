package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/wonny/quantscan/internal/s1_universe"
	"github.com/wonny/quantscan/pkg/logger"
)

// DataService is satisfied by *collector.Collector
type DataService interface {
	BuildUniverse(ctx context.Context, minMarketCap int64, topRank int) (*s1_universe.Universe, error)
	ClearCache()
	SourceName() string
}

// DataHandler handles data-related API endpoints
// ⭐ SSOT: 데이터 API 핸들러는 이 구조체에서만
type DataHandler struct {
	collector    DataService
	minMarketCap int64
	topRank      int
	logger       *logger.Logger
}

// NewDataHandler creates a new data handler; minMarketCap/topRank are the defaults
func NewDataHandler(col DataService, minMarketCap int64, topRank int, log *logger.Logger) *DataHandler {
	return &DataHandler{
		collector:    col,
		minMarketCap: minMarketCap,
		topRank:      topRank,
		logger:       log,
	}
}

// GetUniverse returns the filtered scan universe
// GET /api/universe?min_market_cap=&top_rank=
func (h *DataHandler) GetUniverse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	minCap, topRank := h.minMarketCap, h.topRank
	q := r.URL.Query()
	if v := q.Get("min_market_cap"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid min_market_cap")
			return
		}
		minCap = n
	}
	if v := q.Get("top_rank"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid top_rank")
			return
		}
		topRank = n
	}

	universe, err := h.collector.BuildUniverse(ctx, minCap, topRank)
	if err != nil {
		h.logger.WithError(err).Error("Failed to build universe")
		respondError(w, errorStatus(err), "Failed to retrieve universe")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"source":  h.collector.SourceName(),
		"data":    universe,
	})
}

// ClearCache drops every cached market data entry
// POST /api/cache/clear
func (h *DataHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.collector.ClearCache()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "cache cleared",
	})
}
