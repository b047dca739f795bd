package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// marketCmd represents the market command
var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "시장 국면 조회",
	Long: `코스피/코스닥 지수의 이동평균 위치로 시장 국면(BULL/NEUTRAL/BEAR)을 판단합니다.

Example:
  go run ./cmd/quant market
  go run ./cmd/quant market --json`,
	RunE: runMarket,
}

var marketJSON bool

func init() {
	rootCmd.AddCommand(marketCmd)
	marketCmd.Flags().BoolVar(&marketJSON, "json", false, "JSON 출력")
}

func runMarket(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	mc, err := a.risk.ClassifyMarket(ctx)
	if err != nil {
		PrintError(fmt.Sprintf("market classification failed: %v", err))
		return err
	}

	if marketJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(mc)
	}

	PrintMarketCondition(mc)
	fmt.Println()
	return nil
}
