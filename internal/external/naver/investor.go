package naver

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const maxInvestorPages = 10

var investorDateRe = regexp.MustCompile(`^\d{4}\.\d{2}\.\d{2}$`)

// FetchInvestorFlow fetches daily investor flow from the frgn page, newest first.
// limit개 이상 수집되거나 페이지가 끝나면 종료
// ⭐ SSOT: Naver Finance 투자자 수급 데이터 호출은 이 함수에서만
func (c *Client) FetchInvestorFlow(ctx context.Context, stockCode string, limit int) ([]InvestorFlowData, error) {
	var allTrades []InvestorFlowData

	for page := 1; page <= maxInvestorPages; page++ {
		select {
		case <-ctx.Done():
			return allTrades, ctx.Err()
		default:
		}

		body, err := c.get(ctx, c.baseURL, "/item/frgn.naver", url.Values{
			"code": {stockCode},
			"page": {strconv.Itoa(page)},
		})
		if err != nil {
			return allTrades, err
		}

		trades, hasMore, err := c.parseInvestorHTML(string(body), stockCode)
		if err != nil {
			return allTrades, err
		}
		allTrades = append(allTrades, trades...)

		if len(allTrades) >= limit || !hasMore || len(trades) == 0 {
			break
		}
	}

	if len(allTrades) > limit {
		allTrades = allTrades[:limit]
	}

	c.logger.WithFields(map[string]interface{}{
		"stock_code": stockCode,
		"count":      len(allTrades),
	}).Debug("Fetched investor flow")
	return allTrades, nil
}

// parseInvestorHTML parses one frgn page.
// 컬럼: 날짜 | 종가 | 대비 | 등락률 | 거래량 | 기관 | 외국인 | 보유주수 | 보유율
func (c *Client) parseInvestorHTML(html string, stockCode string) ([]InvestorFlowData, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false, fmt.Errorf("parse investor html: %w", err)
	}

	// Naver Finance HTML 구조: 두번째 테이블이 데이터 테이블
	tables := doc.Find("table.type2")
	if tables.Length() < 2 {
		return nil, false, nil
	}

	var trades []InvestorFlowData
	tables.Eq(1).Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 7 {
			return
		}

		dateText := strings.TrimSpace(cells.Eq(0).Text())
		if !investorDateRe.MatchString(dateText) {
			return
		}
		tradeDate, err := time.Parse("2006.01.02", dateText)
		if err != nil {
			return
		}

		instNet := parseNum(cells.Eq(5).Text())    // 기관 순매수
		foreignNet := parseNum(cells.Eq(6).Text()) // 외국인 순매수

		var ownPct float64
		if cells.Length() >= 9 {
			pct := strings.TrimSuffix(strings.TrimSpace(cells.Eq(8).Text()), "%")
			ownPct, _ = strconv.ParseFloat(pct, 64)
		}

		trades = append(trades, InvestorFlowData{
			StockCode:      stockCode,
			TradeDate:      tradeDate,
			ForeignNet:     foreignNet,
			InstitutionNet: instNet,
			IndividualNet:  -(foreignNet + instNet),
			ForeignOwnPct:  ownPct,
		})
	})

	// 다음 페이지 존재 여부 확인
	hasMore := doc.Find(".pgRR").Length() > 0
	return trades, hasMore, nil
}

func parseNum(s string) int64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "+", "")
	if s == "" || s == "-" {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
