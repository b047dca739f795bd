package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/quantscan/internal/api/handlers"
	"github.com/wonny/quantscan/pkg/logger"
)

// Handlers bundles every endpoint group; nil groups are not routed
type Handlers struct {
	Scan    *handlers.ScanHandler
	Stock   *handlers.StockHandler
	Risk    *handlers.RiskHandler
	Data    *handlers.DataHandler
	Stream  *handlers.StreamHandler
	Metrics http.Handler
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Scan endpoints
	if h.Scan != nil {
		api.HandleFunc("/scan", h.Scan.Scan).Methods("GET", "POST")
		api.HandleFunc("/progress", h.Scan.GetProgress).Methods("GET")
		api.HandleFunc("/results", h.Scan.GetResults).Methods("GET")
		api.HandleFunc("/market", h.Scan.GetMarket).Methods("GET")
	}
	if h.Stream != nil {
		api.HandleFunc("/progress/ws", h.Stream.StreamProgress).Methods("GET")
	}

	// Stock endpoints
	if h.Stock != nil {
		api.HandleFunc("/stock/{ticker}", h.Stock.GetStock).Methods("GET")
		api.HandleFunc("/stock/{ticker}/daily", h.Stock.GetDailyPrices).Methods("GET")
	}

	// Risk endpoints
	if h.Risk != nil {
		api.HandleFunc("/stoploss", h.Risk.CheckStopLoss).Methods("POST")
		api.HandleFunc("/position-size", h.Risk.PositionSize).Methods("POST")
	}

	// Data endpoints
	if h.Data != nil {
		api.HandleFunc("/universe", h.Data.GetUniverse).Methods("GET")
		api.HandleFunc("/cache/clear", h.Data.ClearCache).Methods("POST")
	}

	// Apply middleware
	r.Use(corsMiddleware)
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "quantscan-api",
	})
}

// corsMiddleware allows browser dashboards on other origins
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
