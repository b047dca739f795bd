package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/quantscan/internal/contracts"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "전략 스캔 실행",
	Long: `시장 국면 판단 후 유니버스 전체에 전략을 적용하고 교집합 등급을 매깁니다.

결과는 SCAN_RESULT_DIR 에 scan_result_YYYYMMDD_HHMMSS.json 으로 저장되고
DATABASE_URL 이 설정되어 있으면 scan_results 테이블에도 기록됩니다.

Example:
  go run ./cmd/quant scan
  go run ./cmd/quant scan --min-market-cap 500000000000 --top-rank 50
  go run ./cmd/quant scan --strats breakout,pullback --var breakout.box_lookback=30
  go run ./cmd/quant scan --tickers 005930,000660 --json`,
	RunE: runScan,
}

var (
	scanMinMarketCap int64
	scanTopRank      int
	scanStrats       string
	scanTickers      []string
	scanVars         map[string]float64
	scanJSON         bool
)

func init() {
	rootCmd.AddCommand(scanCmd)

	// Flags
	scanCmd.Flags().Int64Var(&scanMinMarketCap, "min-market-cap", 0, "최소 시가총액 (원, 미지정 시 설정값)")
	scanCmd.Flags().IntVar(&scanTopRank, "top-rank", 0, "거래대금 상위 N (미지정 시 설정값)")
	scanCmd.Flags().StringVar(&scanStrats, "strats", "", "전략 목록 (pullback,bottom_escape,golden_cross,breakout,convergence)")
	scanCmd.Flags().StringSliceVar(&scanTickers, "tickers", nil, "스캔할 종목 (지정 시 유니버스 조회 생략)")
	scanCmd.Flags().StringToFloat64Var(&scanVars, "var", nil, "전략 파라미터 오버라이드 (key=value)")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "JSON 출력")
}

// buildScanRequest maps changed flags onto a request
func buildScanRequest(cmd *cobra.Command) (contracts.ScanRequest, error) {
	var req contracts.ScanRequest

	if cmd.Flags().Changed("min-market-cap") {
		v := scanMinMarketCap
		req.MinMarketCap = &v
	}
	if cmd.Flags().Changed("top-rank") {
		v := scanTopRank
		req.TopRank = &v
	}
	if scanStrats != "" {
		kinds, err := contracts.ParseStrategies(scanStrats)
		if err != nil {
			return req, err
		}
		req.Strategies = kinds
	}
	for _, t := range scanTickers {
		req.Tickers = append(req.Tickers, strings.TrimSpace(t))
	}
	if len(scanVars) > 0 {
		req.Overrides = scanVars
	}

	return req, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	req, err := buildScanRequest(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if !scanJSON {
		updates, cancel := a.scanner.Subscribe()
		defer cancel()
		go func() {
			for p := range updates {
				if p.State == contracts.StateRunning {
					fmt.Fprintf(os.Stderr, "\r[Scan] %3d%% %-40s", p.Percent, p.Message)
				}
			}
		}()
	}

	result, err := a.scanner.Run(ctx, req)
	if !scanJSON {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		PrintError(fmt.Sprintf("scan failed: %v", err))
		return err
	}

	if scanJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	PrintScanResult(result)
	PrintSuccess(fmt.Sprintf("Scan %s completed in %.2fs", result.ScanID, result.Summary.ElapsedSeconds))
	return nil
}
