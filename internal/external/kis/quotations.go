package kis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/quantscan/internal/contracts"
)

const (
	trDailyChart   = "FHKST03010100" // 국내주식 기간별 시세 (일봉)
	trCurrentPrice = "FHKST01010100" // 국내주식 현재가
	trAskingPrice  = "FHKST01010200" // 호가/예상체결
	trInvestor     = "FHKST01010900" // 투자자별 매매동향
	trProgramTrade = "FHPPG04650100" // 종목별 프로그램매매

	quotationsPath = "/uapi/domestic-stock/v1/quotations"
)

// InvestorFlow is the latest foreign/institution net trade
type InvestorFlow struct {
	ForeignNet     int64
	InstitutionNet int64
	ForeignOwnPct  float64
}

// ProgramFlow is the latest program trading volume
type ProgramFlow struct {
	Buy  int64
	Sell int64
	Net  int64
}

func stockParams(code string) url.Values {
	return url.Values{
		"FID_COND_MRKT_DIV_CODE": {"J"},
		"FID_INPUT_ISCD":         {code},
	}
}

// DailyChart fetches daily bars between from and to, date ascending
func (c *Client) DailyChart(ctx context.Context, code string, from, to time.Time) (contracts.Series, error) {
	params := stockParams(code)
	params.Set("FID_INPUT_DATE_1", from.Format("20060102"))
	params.Set("FID_INPUT_DATE_2", to.Format("20060102"))
	params.Set("FID_PERIOD_DIV_CODE", "D")
	params.Set("FID_ORG_ADJ_PRC", "0")

	env, err := c.quotation(ctx, quotationsPath+"/inquire-daily-itemchartprice", trDailyChart, params)
	if err != nil {
		return nil, err
	}

	bars, err := parseDailyChart(env.Output2)
	if err != nil {
		return nil, fmt.Errorf("parse daily chart %s: %w", code, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"stock_code": code,
		"count":      len(bars),
	}).Debug("Fetched daily chart")
	return bars, nil
}

// parseDailyChart converts output2 rows (newest first) to an ascending series
func parseDailyChart(raw json.RawMessage) (contracts.Series, error) {
	var rows []struct {
		Date     string `json:"stck_bsop_date"`
		Open     string `json:"stck_oprc"`
		High     string `json:"stck_hgpr"`
		Low      string `json:"stck_lwpr"`
		Close    string `json:"stck_clpr"`
		Volume   string `json:"acml_vol"`
		Turnover string `json:"acml_tr_pbmn"`
	}
	if len(raw) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(rows))
	bars := make(contracts.Series, 0, len(rows))
	for _, r := range rows {
		if r.Date == "" || seen[r.Date] {
			continue
		}
		date, err := time.Parse("20060102", r.Date)
		if err != nil {
			continue
		}
		seen[r.Date] = true

		bars = append(bars, contracts.PriceBar{
			Date:     date,
			Open:     parseFloatSafe(r.Open),
			High:     parseFloatSafe(r.High),
			Low:      parseFloatSafe(r.Low),
			Close:    parseFloatSafe(r.Close),
			Volume:   parseIntSafe(r.Volume),
			Turnover: parseIntSafe(r.Turnover),
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// CurrentPrice gets real-time current price for a stock
func (c *Client) CurrentPrice(ctx context.Context, code string) (*contracts.Quote, error) {
	env, err := c.quotation(ctx, quotationsPath+"/inquire-price", trCurrentPrice, stockParams(code))
	if err != nil {
		return nil, err
	}

	var out struct {
		Price     string `json:"stck_prpr"`
		ChangePct string `json:"prdy_ctrt"`
		Volume    string `json:"acml_vol"`
		Turnover  string `json:"acml_tr_pbmn"`
		Open      string `json:"stck_oprc"`
		High      string `json:"stck_hgpr"`
		Low       string `json:"stck_lwpr"`
		Strength  string `json:"seln_cnqn_smtn"`
	}
	if err := decodeFirst(env.Output, &out); err != nil {
		return nil, fmt.Errorf("decode current price %s: %w", code, err)
	}

	quote := &contracts.Quote{
		Ticker:    code,
		Price:     parseFloatSafe(out.Price),
		ChangePct: parseFloatSafe(out.ChangePct),
		Volume:    parseIntSafe(out.Volume),
		Turnover:  parseIntSafe(out.Turnover),
		Open:      parseFloatSafe(out.Open),
		High:      parseFloatSafe(out.High),
		Low:       parseFloatSafe(out.Low),
		Strength:  parseFloatSafe(out.Strength),
	}
	if quote.Price <= 0 {
		return nil, fmt.Errorf("no current price for %s", code)
	}
	return quote, nil
}

// AskingPrice gets total ask/bid remaining quantity
func (c *Client) AskingPrice(ctx context.Context, code string) (*contracts.OrderBook, error) {
	env, err := c.quotation(ctx, quotationsPath+"/inquire-asking-price-exp-ccn", trAskingPrice, stockParams(code))
	if err != nil {
		return nil, err
	}

	var out struct {
		TotalAsk string `json:"total_askp_rsqn"`
		TotalBid string `json:"total_bidp_rsqn"`
	}
	if err := decodeFirst(env.Output1, &out); err != nil {
		return nil, fmt.Errorf("decode asking price %s: %w", code, err)
	}

	return NewOrderBook(code, parseIntSafe(out.TotalAsk), parseIntSafe(out.TotalBid)), nil
}

// NewOrderBook builds an order book with ratio = ask / max(bid,1), 2dp
func NewOrderBook(code string, ask, bid int64) *contracts.OrderBook {
	denom := bid
	if denom < 1 {
		denom = 1
	}
	return &contracts.OrderBook{
		Ticker:      code,
		TotalAsk:    ask,
		TotalBid:    bid,
		AskBidRatio: math.Round(float64(ask)/float64(denom)*100) / 100,
	}
}

// Investor gets the latest foreign/institution net buy
func (c *Client) Investor(ctx context.Context, code string) (*InvestorFlow, error) {
	env, err := c.quotation(ctx, quotationsPath+"/inquire-investor", trInvestor, stockParams(code))
	if err != nil {
		return nil, err
	}

	var out struct {
		ForeignNet     string `json:"frgn_ntby_qty"`
		InstitutionNet string `json:"orgn_ntby_qty"`
		ForeignOwnPct  string `json:"frgn_stkn_rto"`
	}
	if err := decodeFirst(env.Output, &out); err != nil {
		return nil, fmt.Errorf("decode investor %s: %w", code, err)
	}

	return &InvestorFlow{
		ForeignNet:     parseIntSafe(out.ForeignNet),
		InstitutionNet: parseIntSafe(out.InstitutionNet),
		ForeignOwnPct:  parseFloatSafe(out.ForeignOwnPct),
	}, nil
}

// ProgramTrade gets the latest program trading volume
func (c *Client) ProgramTrade(ctx context.Context, code string) (*ProgramFlow, error) {
	env, err := c.quotation(ctx, quotationsPath+"/program-trade-by-stock", trProgramTrade, stockParams(code))
	if err != nil {
		return nil, err
	}

	raw := env.Output1
	if len(raw) == 0 {
		raw = env.Output
	}

	var out struct {
		Buy  string `json:"pgmn_buy_qty"`
		Sell string `json:"pgmn_sell_qty"`
		Net  string `json:"pgmn_ntby_qty"`
	}
	if err := decodeFirst(raw, &out); err != nil {
		return nil, fmt.Errorf("decode program trade %s: %w", code, err)
	}

	return &ProgramFlow{
		Buy:  parseIntSafe(out.Buy),
		Sell: parseIntSafe(out.Sell),
		Net:  parseIntSafe(out.Net),
	}, nil
}

func parseIntSafe(s string) int64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	// 소수점 포함 숫자
	f, _ := strconv.ParseFloat(s, 64)
	return int64(f)
}

func parseFloatSafe(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
