package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/risk"
	"github.com/wonny/quantscan/pkg/logger"
)

const (
	defaultDailyDays = 120
	maxDailyDays     = 500
)

// StockData is the read side of the collector used by stock endpoints
type StockData interface {
	GetSeries(ctx context.Context, ticker string, days int) (contracts.Series, error)
	GetQuote(ctx context.Context, ticker string) (*contracts.Quote, error)
	GetSupplyDemand(ctx context.Context, ticker string) (*contracts.SupplyDemand, error)
	Name(ctx context.Context, ticker string) string
}

// VolatilityService is satisfied by *risk.Classifier
type VolatilityService interface {
	Volatility(ctx context.Context, ticker string) (*risk.VolatilityReport, error)
}

// StockHandler handles stock data API endpoints
// ⭐ SSOT: 종목 데이터 API 핸들러는 이 구조체에서만
type StockHandler struct {
	scanner    ScanService
	data       StockData
	volatility VolatilityService
	logger     *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(scanner ScanService, data StockData, volatility VolatilityService, log *logger.Logger) *StockHandler {
	return &StockHandler{
		scanner:    scanner,
		data:       data,
		volatility: volatility,
		logger:     log,
	}
}

// StockAnalysis is the single-ticker analysis response
type StockAnalysis struct {
	Ticker     string                  `json:"ticker"`
	Name       string                  `json:"name"`
	Quote      *contracts.Quote        `json:"quote,omitempty"`
	Signals    []*contracts.Signal     `json:"signals"`
	Volatility *risk.VolatilityReport  `json:"volatility,omitempty"`
	Supply     *contracts.SupplyDemand `json:"supply,omitempty"`
}

// GetStock runs every strategy against one ticker
// GET /api/stock/{ticker}
func (h *StockHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ticker := mux.Vars(r)["ticker"]

	if ticker == "" {
		respondError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	signals, err := h.scanner.ScanOneTicker(ctx, ticker)
	if err != nil {
		h.logger.WithError(err).WithField("ticker", ticker).Error("Failed to analyze stock")
		respondError(w, errorStatus(err), err.Error())
		return
	}

	resp := StockAnalysis{
		Ticker:  ticker,
		Name:    h.data.Name(ctx, ticker),
		Signals: signals,
	}

	// 부가 정보는 실패해도 응답
	if q, err := h.data.GetQuote(ctx, ticker); err == nil {
		resp.Quote = q
	}
	if v, err := h.volatility.Volatility(ctx, ticker); err == nil {
		resp.Volatility = v
	} else {
		h.logger.WithError(err).WithField("ticker", ticker).Debug("Volatility unavailable")
	}
	if sd, err := h.data.GetSupplyDemand(ctx, ticker); err == nil {
		resp.Supply = sd
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    resp,
	})
}

// DailyPriceResponse represents a daily price record for API response
type DailyPriceResponse struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// GetDailyPrices returns daily price data for a stock
// GET /api/stock/{ticker}/daily?days=120
func (h *StockHandler) GetDailyPrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ticker := mux.Vars(r)["ticker"]

	if ticker == "" {
		respondError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	// Parse days parameter (default: 120)
	days := defaultDailyDays
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		if d, err := strconv.Atoi(daysStr); err == nil && d > 0 {
			days = min(d, maxDailyDays)
		}
	}

	series, err := h.data.GetSeries(ctx, ticker, days)
	if err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"ticker": ticker,
			"days":   days,
		}).Error("Failed to get daily prices")
		respondError(w, errorStatus(err), "Failed to retrieve daily prices")
		return
	}

	// Convert to response format
	result := make([]DailyPriceResponse, len(series))
	for i, p := range series {
		result[i] = DailyPriceResponse{
			Date:   p.Date.Format("2006-01-02"),
			Open:   p.Open,
			High:   p.High,
			Low:    p.Low,
			Close:  p.Close,
			Volume: p.Volume,
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    result,
	})
}
