package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/quantscan/internal/risk"
)

// stockCmd represents the stock command
var stockCmd = &cobra.Command{
	Use:   "stock [ticker]",
	Short: "단일 종목 분석",
	Long: `한 종목에 5개 전략을 모두 적용하고 등급과 변동성(VaR)을 출력합니다.

Example:
  go run ./cmd/quant stock 005930`,
	Args: cobra.ExactArgs(1),
	RunE: runStock,
}

func init() {
	rootCmd.AddCommand(stockCmd)
}

func runStock(cmd *cobra.Command, args []string) error {
	ticker := args[0]

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	signals, err := a.scanner.ScanOneTicker(ctx, ticker)
	if err != nil {
		PrintError(fmt.Sprintf("analysis failed: %v", err))
		return err
	}

	PrintHeader(fmt.Sprintf("%s (%s)", a.collector.Name(ctx, ticker), ticker))
	if q, err := a.collector.GetQuote(ctx, ticker); err == nil {
		PrintKeyValue("현재가", formatWon(q.Price), 10)
		PrintKeyValue("등락률", fmt.Sprintf("%+.2f%%", q.ChangePct), 10)
	}
	fmt.Println()
	PrintSignals(signals)

	vol, err := a.risk.Volatility(ctx, ticker)
	switch {
	case errors.Is(err, risk.ErrInsufficientData):
		PrintWarning("변동성 계산에 필요한 일봉이 부족합니다")
	case err != nil:
		PrintWarning(fmt.Sprintf("변동성 계산 실패: %v", err))
	default:
		PrintVolatility(vol)
	}
	fmt.Println()

	return nil
}
