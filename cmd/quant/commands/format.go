package commands

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/internal/risk"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

var printer = message.NewPrinter(language.Korean)

// formatWon formats a price with thousands separators
func formatWon(v float64) string {
	if v == 0 {
		return "-"
	}
	return printer.Sprintf("%.0f원", v)
}

// formatCap formats a market cap in 억 원
func formatCap(v int64) string {
	return printer.Sprintf("%d억", v/100_000_000)
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintHeader prints a titled block header
func PrintHeader(title string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	// Separator line
	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Printf("   • %s\n", item)
	}
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintMarketCondition prints the regime block
func PrintMarketCondition(mc *contracts.MarketCondition) {
	if mc == nil {
		return
	}
	PrintHeader("시장 상황")
	PrintKeyValue("국면", string(mc.Phase), 10)
	PrintKeyValue("최대 비중", fmt.Sprintf("%.0f%%", mc.MaxWeight*100), 10)

	allowed := make([]string, len(mc.AllowedStrategies))
	for i, k := range mc.AllowedStrategies {
		allowed[i] = k.Label()
	}
	PrintKeyValue("허용 전략", strings.Join(allowed, ", "), 10)

	if len(mc.Reasons) > 0 {
		fmt.Println()
		PrintList(mc.Reasons)
	}
}

var signalColumns = []string{"등급", "종목", "전략", "신뢰도", "현재가", "1차 진입", "손절", "1차 목표", "판정"}
var signalWidths = []int{4, 18, 10, 6, 12, 12, 12, 12, 8}

// PrintSignals prints graded signals as a table
func PrintSignals(signals []*contracts.Signal) {
	if len(signals) == 0 {
		PrintInfo("발생한 신호가 없습니다")
		return
	}

	PrintTableHeader(signalColumns, signalWidths)
	for _, s := range signals {
		grade := string(s.Grade)
		if grade == "" {
			grade = "-"
		}
		name := s.Ticker
		if s.Name != "" && s.Name != s.Ticker {
			name = fmt.Sprintf("%s %s", s.Name, s.Ticker)
		}
		PrintTableRow([]string{
			grade,
			name,
			s.StrategyLabel,
			fmt.Sprintf("%.0f", s.Confidence),
			formatWon(s.CurrentPrice),
			formatWon(s.Entry1),
			formatWon(s.StopLoss),
			formatWon(s.Target1),
			string(s.Verdict),
		}, signalWidths)
	}
}

// PrintScanResult prints the full scan report
func PrintScanResult(r *contracts.ScanResult) {
	PrintMarketCondition(r.MarketCondition)

	PrintHeader(fmt.Sprintf("스캔 결과 %s", r.ScanID))
	PrintKeyValue("스캔 종목", fmt.Sprintf("%d", r.Summary.TotalScanned), 10)
	PrintKeyValue("신호", fmt.Sprintf("%d (승인 %d / 관망 %d)", r.Summary.TotalSignals, r.Summary.Approved, r.Summary.Watch), 10)
	PrintKeyValue("교집합", r.Intersection.Description, 10)
	PrintKeyValue("소요 시간", fmt.Sprintf("%.1fs", r.Summary.ElapsedSeconds), 10)
	PrintKeyValue("파라미터", r.ParamsHash, 10)

	for _, k := range contracts.AllStrategies {
		if n := r.Summary.StrategyBreakdown[k]; n > 0 {
			PrintKeyValue(k.Label(), fmt.Sprintf("%d", n), 10)
		}
	}

	fmt.Println()
	PrintSignals(r.Signals)
	fmt.Println()
}

// PrintVolatility prints the VaR block for one ticker
func PrintVolatility(v *risk.VolatilityReport) {
	PrintHeader("변동성 (1일 95% VaR)")
	PrintKeyValue("일간 변동성", fmt.Sprintf("%.2f%%", v.DailyVolPct), 14)
	PrintKeyValue("ATR", fmt.Sprintf("%.2f%%", v.ATRPct), 14)
	PrintKeyValue("Historical VaR", fmt.Sprintf("%.2f%% (CVaR %.2f%%)", v.Historical.VaR*100, v.Historical.CVaR*100), 14)
	PrintKeyValue("Parametric VaR", fmt.Sprintf("%.2f%%", v.Parametric.VaR*100), 14)
	PrintKeyValue("ATR 손절폭", formatWon(v.SuggestedATR), 14)
}
