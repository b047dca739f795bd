package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/quantscan/internal/contracts"
)

var priceRowRe = regexp.MustCompile(`\["(\d{8})",\s*(\d+),\s*(\d+),\s*(\d+),\s*(\d+),\s*(\d+)`)

// FetchPrices fetches daily bars for a stock from the Naver chart API, date ascending
// ⭐ SSOT: Naver Finance 가격 API 호출은 이 함수에서만
func (c *Client) FetchPrices(ctx context.Context, stockCode string, from, to time.Time) (contracts.Series, error) {
	body, err := c.get(ctx, c.chartURL, "/siseJson.naver", url.Values{
		"symbol":      {stockCode},
		"requestType": {"1"},
		"startTime":   {from.Format("20060102")},
		"endTime":     {to.Format("20060102")},
		"timeframe":   {"day"},
	})
	if err != nil {
		return nil, err
	}

	prices, err := c.parsePriceResponse(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse response failed: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"stock_code": stockCode,
		"count":      len(prices),
	}).Debug("Fetched prices")
	return prices, nil
}

// parsePriceResponse parses Naver Finance JSON-ish response
func (c *Client) parsePriceResponse(body string) (contracts.Series, error) {
	body = strings.TrimSpace(body)
	body = strings.ReplaceAll(body, "'", "\"")

	var prices contracts.Series

	// Try JSON parsing first
	var rawData [][]interface{}
	if err := json.Unmarshal([]byte(body), &rawData); err == nil {
		prices = c.parsePriceJSON(rawData)
	} else {
		// Fallback to regex parsing
		prices = c.parsePriceRegex(body)
	}

	sort.Slice(prices, func(i, j int) bool { return prices[i].Date.Before(prices[j].Date) })
	return prices, nil
}

// parsePriceJSON parses JSON array format (first row is the header)
func (c *Client) parsePriceJSON(rawData [][]interface{}) contracts.Series {
	var prices contracts.Series
	for i, row := range rawData {
		if i == 0 || len(row) < 6 {
			continue // Skip header
		}

		dateStr, ok := row[0].(string)
		if !ok {
			continue
		}
		tradeDate, err := time.Parse("20060102", strings.Trim(strings.TrimSpace(dateStr), "\""))
		if err != nil {
			continue
		}

		closePrice := toInt64(row[4])
		volume := toInt64(row[5])
		if closePrice <= 0 {
			continue
		}

		prices = append(prices, contracts.PriceBar{
			Date:     tradeDate,
			Open:     float64(toInt64(row[1])),
			High:     float64(toInt64(row[2])),
			Low:      float64(toInt64(row[3])),
			Close:    float64(closePrice),
			Volume:   volume,
			Turnover: closePrice * volume,
		})
	}
	return prices
}

// parsePriceRegex parses using regex (fallback)
func (c *Client) parsePriceRegex(body string) contracts.Series {
	matches := priceRowRe.FindAllStringSubmatch(body, -1)

	var prices contracts.Series
	for _, match := range matches {
		if len(match) < 7 {
			continue
		}

		tradeDate, err := time.Parse("20060102", match[1])
		if err != nil {
			continue
		}

		openPrice, _ := strconv.ParseInt(match[2], 10, 64)
		highPrice, _ := strconv.ParseInt(match[3], 10, 64)
		lowPrice, _ := strconv.ParseInt(match[4], 10, 64)
		closePrice, _ := strconv.ParseInt(match[5], 10, 64)
		volume, _ := strconv.ParseInt(match[6], 10, 64)

		prices = append(prices, contracts.PriceBar{
			Date:     tradeDate,
			Open:     float64(openPrice),
			High:     float64(highPrice),
			Low:      float64(lowPrice),
			Close:    float64(closePrice),
			Volume:   volume,
			Turnover: closePrice * volume,
		})
	}
	return prices
}

// toInt64 converts various types to int64
func toInt64(v interface{}) int64 {
	switch val := v.(type) {
	case float64:
		return int64(val)
	case int64:
		return val
	case int:
		return int64(val)
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		return n
	default:
		return 0
	}
}
