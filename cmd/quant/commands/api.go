package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/quantscan/internal/api"
	"github.com/wonny/quantscan/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET      /health                    - Health check
  GET      /metrics                   - Prometheus metrics
  GET|POST /api/scan                  - 스캔 실행 (async=true 면 백그라운드)
  GET      /api/progress              - 진행률
  GET      /api/progress/ws           - 진행률 WebSocket
  GET      /api/results               - 최근 결과 (grade=S,A 필터)
  GET      /api/market                - 시장 국면
  GET      /api/stock/{ticker}        - 단일 종목 분석
  GET      /api/stock/{ticker}/daily  - 일봉
  POST     /api/stoploss              - 보유 종목 손절 점검
  POST     /api/position-size         - 신규 매수 비중
  GET      /api/universe              - 유니버스
  POST     /api/cache/clear           - 캐시 초기화

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== quantscan API Server ===")

	ctx := cmd.Context()

	// 1. Wire components
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, log := a.cfg, a.log

	// Override port if flag is set
	if apiPort != "" {
		cfg.Port = apiPort
	}

	log.WithFields(map[string]interface{}{
		"port":   cfg.Port,
		"env":    cfg.Env,
		"source": a.collector.SourceName(),
	}).Info("Initializing API server")

	// 2. Create handlers
	h := api.Handlers{
		Scan:   handlers.NewScanHandler(a.scanner, log),
		Stock:  handlers.NewStockHandler(a.scanner, a.collector, a.risk, log),
		Risk:   handlers.NewRiskHandler(a.risk, log),
		Data:   handlers.NewDataHandler(a.collector, cfg.Filter.MinMarketCap, cfg.Filter.TopRank, log),
		Stream: handlers.NewStreamHandler(a.scanner, log),
	}
	if cfg.MetricsEnabled {
		h.Metrics = a.metrics.Handler()
	}

	// 3. Create router / server
	router := api.NewRouter(h, log)
	server := api.New(cfg, log, router)

	// 4. Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
