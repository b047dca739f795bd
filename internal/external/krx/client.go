package krx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/wonny/quantscan/pkg/config"
	"github.com/wonny/quantscan/pkg/httputil"
	"github.com/wonny/quantscan/pkg/logger"
)

const jsonDataPath = "/comm/bldAttendant/getJsonData.cmd"

// Client handles communication with the KRX data portal
// ⭐ SSOT: KRX 시장 데이터 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new KRX client
func NewClient(cfg config.KRXConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("krx"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// row is one record of a KRX JSON block
type row map[string]interface{}

func (r row) str(key string) string {
	switch v := r[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// post calls a bld endpoint and returns the first data block found
func (c *Client) post(ctx context.Context, bld string, params url.Values) ([]row, error) {
	form := url.Values{
		"bld":    {bld},
		"locale": {"ko_KR"},
	}
	for k, v := range params {
		form[k] = v
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+jsonDataPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// Set headers to mimic browser request (required by KRX)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", c.baseURL+"/contents/MDC/MDI/mdiLoader/index.cmd")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("KRX API request: %w", err)
	}
	data, err := httputil.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("KRX API %s: %w", bld, err)
	}

	return parseBlocks(data)
}

// parseBlocks extracts rows from {"OutBlock_1": [...]}, {"block1": [...]},
// {"output": [...]} or a bare array
func parseBlocks(data []byte) ([]row, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var rows []row
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("decode KRX response: %w", err)
		}
		return rows, nil
	}

	var blocks map[string]json.RawMessage
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("decode KRX response: %w", err)
	}
	for _, key := range []string{"OutBlock_1", "block1", "output"} {
		raw, ok := blocks[key]
		if !ok {
			continue
		}
		var rows []row
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("decode KRX %s: %w", key, err)
		}
		return rows, nil
	}
	return nil, nil
}

// parseKRXNumber parses KRX number format (with commas) to int64
func parseKRXNumber(s string) int64 {
	return int64(parseKRXFloat(s))
}

// parseKRXFloat parses KRX number format (with commas) to float64
func parseKRXFloat(s string) float64 {
	// Remove commas and whitespace
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0
	}
	n, _ := strconv.ParseFloat(s, 64)
	return n
}
