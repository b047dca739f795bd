package krx

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/wonny/quantscan/internal/contracts"
)

const bldMarketCap = "dbms/MDC/STAT/standard/MDCSTAT01501" // 전종목 시세 (시가총액/거래대금)

// markets maps KRX mktId to the display market
var markets = []struct {
	ID   string
	Name string
}{
	{"STK", "KOSPI"},
	{"KSQ", "KOSDAQ"},
}

// FetchListings fetches the market-cap / turnover screen of one market for one date
// ⭐ SSOT: KRX 시가총액/거래대금 조회는 이 함수에서만
func (c *Client) FetchListings(ctx context.Context, mktID, market string, date time.Time) ([]contracts.Listing, error) {
	trdDd := date.Format("20060102")
	rows, err := c.post(ctx, bldMarketCap, url.Values{
		"mktId":       {mktID},
		"trdDd":       {trdDd},
		"share":       {"1"},
		"money":       {"1"},
		"csvxls_isNo": {"false"},
	})
	if err != nil {
		return nil, err
	}

	result := make([]contracts.Listing, 0, len(rows))
	for _, r := range rows {
		code := r.str("ISU_SRT_CD")
		if code == "" {
			continue
		}
		result = append(result, contracts.Listing{
			Ticker:    code,
			Name:      r.str("ISU_ABBRV"),
			Market:    market,
			Close:     parseKRXFloat(r.str("TDD_CLSPRC")),
			MarketCap: parseKRXNumber(r.str("MKTCAP")),
			Turnover:  parseKRXNumber(r.str("ACC_TRDVAL")),
			Volume:    parseKRXNumber(r.str("ACC_TRDVOL")),
		})
	}

	c.logger.WithFields(map[string]interface{}{
		"market":     market,
		"trade_date": trdDd,
		"count":      len(result),
	}).Debug("Fetched listings from KRX")

	return result, nil
}

// FetchLatestListings walks back up to 7 calendar days from now until
// any market returns rows (장 시작 전, 휴일 대응)
func (c *Client) FetchLatestListings(ctx context.Context, now time.Time) ([]contracts.Listing, time.Time, error) {
	var lastErr error
	for i := 0; i < 7; i++ {
		date := now.AddDate(0, 0, -i)
		if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
			continue
		}

		var all []contracts.Listing
		for _, m := range markets {
			items, err := c.FetchListings(ctx, m.ID, m.Name, date)
			if err != nil {
				lastErr = err
				continue
			}
			all = append(all, items...)
		}

		// 하나만 성공해도 사용
		if len(all) > 0 {
			c.logger.WithFields(map[string]interface{}{
				"trade_date": date.Format("20060102"),
				"count":      len(all),
			}).Info("Fetched latest listings from KRX")
			return all, date, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, time.Time{}, err
		}
	}

	if lastErr != nil {
		return nil, time.Time{}, fmt.Errorf("no KRX listings in last 7 days: %w", lastErr)
	}
	return nil, time.Time{}, fmt.Errorf("no KRX listings in last 7 days")
}
