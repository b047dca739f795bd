package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/quantscan/internal/contracts"
)

// resultsCmd represents the results command
var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "최근 스캔 결과 조회",
	Long: `가장 최근에 저장된 스캔 결과를 불러와 현재 수급으로 다시 등급을 매깁니다.

Example:
  go run ./cmd/quant results
  go run ./cmd/quant results --json`,
	RunE: runResults,
}

var resultsJSON bool

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.Flags().BoolVar(&resultsJSON, "json", false, "JSON 출력")
}

func runResults(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.scanner.Latest(ctx)
	if errors.Is(err, contracts.ErrNoResult) {
		PrintWarning("저장된 스캔 결과가 없습니다. 먼저 'quant scan' 을 실행하세요")
		return nil
	}
	if err != nil {
		PrintError(fmt.Sprintf("load results failed: %v", err))
		return err
	}

	if resultsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	PrintScanResult(result)
	return nil
}
