package naver

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleInvestorHTML = `
	<html>
	<body>
	<table class="type2">
		<tr><th>Header</th></tr>
	</table>
	<table class="type2">
		<tr>
			<td>2024.01.16</td>
			<td>73,000</td>
			<td>+500</td>
			<td>+0.69%</td>
			<td>1,200,000</td>
			<td>+60,000</td>
			<td>+40,000</td>
			<td>3,100,000,000</td>
			<td>52.31%</td>
		</tr>
		<tr>
			<td>2024.01.15</td>
			<td>72,500</td>
			<td>+500</td>
			<td>+0.69%</td>
			<td>1,000,000</td>
			<td>+50,000</td>
			<td>-30,000</td>
		</tr>
		<tr>
			<td>invalid date</td>
			<td>73,000</td>
		</tr>
	</table>
	</body>
	</html>
`

func TestParseInvestorHTML(t *testing.T) {
	c := &Client{}
	trades, hasMore, err := c.parseInvestorHTML(sampleInvestorHTML, "005930")
	if err != nil {
		t.Fatalf("parseInvestorHTML() error = %v", err)
	}

	// Should parse 2 valid rows
	if len(trades) != 2 {
		t.Fatalf("parseInvestorHTML() got %d trades, want 2", len(trades))
	}

	trade := trades[0]
	if trade.StockCode != "005930" {
		t.Errorf("StockCode = %s, want 005930", trade.StockCode)
	}
	expectedDate := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	if !trade.TradeDate.Equal(expectedDate) {
		t.Errorf("TradeDate = %v, want %v", trade.TradeDate, expectedDate)
	}
	if trade.InstitutionNet != 60000 {
		t.Errorf("InstitutionNet = %d, want 60000", trade.InstitutionNet)
	}
	if trade.ForeignNet != 40000 {
		t.Errorf("ForeignNet = %d, want 40000", trade.ForeignNet)
	}
	if trade.ForeignOwnPct != 52.31 {
		t.Errorf("ForeignOwnPct = %v, want 52.31", trade.ForeignOwnPct)
	}
	// Individual = -(Foreign + Institution)
	if trade.IndividualNet != -100000 {
		t.Errorf("IndividualNet = %d, want -100000", trade.IndividualNet)
	}

	if trades[1].ForeignNet != -30000 {
		t.Errorf("second ForeignNet = %d, want -30000", trades[1].ForeignNet)
	}

	// hasMore should be false (no pagination links in sample)
	if hasMore {
		t.Error("parseInvestorHTML() hasMore = true, want false")
	}
}

func TestParseInvestorHTMLNoTables(t *testing.T) {
	c := &Client{}
	trades, hasMore, err := c.parseInvestorHTML("<html><body></body></html>", "005930")
	if err != nil {
		t.Fatalf("parseInvestorHTML() error = %v", err)
	}
	if len(trades) != 0 {
		t.Errorf("parseInvestorHTML() got %d trades, want 0", len(trades))
	}
	if hasMore {
		t.Error("parseInvestorHTML() hasMore = true, want false")
	}
}

func TestFetchInvestorFlowLimit(t *testing.T) {
	var pages int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pages, 1)
		assert.Equal(t, "/item/frgn.naver", r.URL.Path)
		// 다음 페이지 링크 포함
		_, _ = w.Write([]byte(sampleInvestorHTML + `<td class="pgRR"><a href="#">맨뒤</a></td>`))
	})

	trades, err := client.FetchInvestorFlow(context.Background(), "005930", 3)
	require.NoError(t, err)
	assert.Len(t, trades, 3)
	assert.Equal(t, int32(2), atomic.LoadInt32(&pages))
}

func TestParseNum(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"+1,234", 1234},
		{"-500", -500},
		{" 0 ", 0},
		{"-", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseNum(tt.in); got != tt.want {
			t.Errorf("parseNum(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
