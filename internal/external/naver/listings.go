package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/wonny/quantscan/internal/contracts"
)

const listingPageSize = 100

// rankingStockItem represents a stock item from Naver market-sum ranking API
type rankingStockItem struct {
	ItemCode       string `json:"itemcode"`
	ItemName       string `json:"itemname"`
	NowVal         string `json:"nowVal"`                  // 현재가
	MarketSum      string `json:"marketSum"`               // 시가총액 (원)
	TradingValue   string `json:"accumulatedTradingValue"` // 거래대금 (원)
	TradingVolume  string `json:"accumulatedTradingVolume"`
	ListedStockCnt string `json:"listedStockCnt"` // 상장주식수
}

// FetchListings fetches the market-sum ranking of one market (KOSPI, KOSDAQ).
// KRX 조회 실패 시 유니버스 대체 경로
func (c *Client) FetchListings(ctx context.Context, market string, pages int) ([]contracts.Listing, error) {
	var all []contracts.Listing

	for page := 1; page <= pages; page++ {
		body, err := c.get(ctx, c.stockAPIURL, "/api/domestic/market/stock/default", url.Values{
			"orderType":  {"marketSum"},
			"marketType": {market},
			"page":       {strconv.Itoa(page)},
			"pageSize":   {strconv.Itoa(listingPageSize)},
		})
		if err != nil {
			if len(all) > 0 {
				c.logger.WithError(err).WithField("page", page).Warn("Failed to fetch listing page")
				break
			}
			return nil, err
		}

		var items []rankingStockItem
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("decode listing page %d: %w", page, err)
		}
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			if item.ItemCode == "" {
				continue
			}
			all = append(all, contracts.Listing{
				Ticker:    item.ItemCode,
				Name:      item.ItemName,
				Market:    market,
				Close:     parseDecimal(item.NowVal),
				MarketCap: int64(parseDecimal(item.MarketSum)),
				Turnover:  int64(parseDecimal(item.TradingValue)),
				Volume:    int64(parseDecimal(item.TradingVolume)),
			})
		}

		if len(items) < listingPageSize {
			break
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"market": market,
		"count":  len(all),
	}).Debug("Fetched listings from Naver")
	return all, nil
}

// parseDecimal parses "1,234.5" style numbers
func parseDecimal(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
