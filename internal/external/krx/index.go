package krx

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/wonny/quantscan/internal/contracts"
)

const bldIndex = "dbms/MDC/STAT/standard/MDCSTAT00301" // 지수 기간별 시세

// FetchIndex fetches daily index bars between from and to, date ascending.
// code: 1001 KOSPI, 2001 KOSDAQ
func (c *Client) FetchIndex(ctx context.Context, code string, from, to time.Time) (contracts.Series, error) {
	rows, err := c.post(ctx, bldIndex, url.Values{
		"idxIndMidclssCd": {code},
		"strtDd":          {from.Format("20060102")},
		"endDd":           {to.Format("20060102")},
		"csvxls_isNo":     {"false"},
	})
	if err != nil {
		return nil, err
	}

	series := parseIndexRows(rows)

	c.logger.WithFields(map[string]interface{}{
		"index": code,
		"count": len(series),
	}).Debug("Fetched index from KRX")

	return series, nil
}

func parseIndexRows(rows []row) contracts.Series {
	seen := make(map[time.Time]bool, len(rows))
	series := make(contracts.Series, 0, len(rows))
	for _, r := range rows {
		date, ok := parseKRXDate(r.str("TRD_DD"))
		if !ok || seen[date] {
			continue
		}
		closePx := parseKRXFloat(r.str("CLSPRC_IDX"))
		if closePx <= 0 {
			continue
		}
		seen[date] = true

		series = append(series, contracts.PriceBar{
			Date:     date,
			Open:     parseKRXFloat(r.str("OPNPRC_IDX")),
			High:     parseKRXFloat(r.str("HGPRC_IDX")),
			Low:      parseKRXFloat(r.str("LWPRC_IDX")),
			Close:    closePx,
			Volume:   parseKRXNumber(r.str("ACC_TRDVOL")),
			Turnover: parseKRXNumber(r.str("ACC_TRDVAL")),
		})
	}

	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series
}

// parseKRXDate accepts 2024/01/15, 2024-01-15, 2024.01.15 and 20240115
func parseKRXDate(s string) (time.Time, bool) {
	s = strings.NewReplacer("/", "", "-", "", ".", "").Replace(strings.TrimSpace(s))
	t, err := time.Parse("20060102", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
