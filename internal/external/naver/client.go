package naver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/quantscan/pkg/config"
	"github.com/wonny/quantscan/pkg/httputil"
	"github.com/wonny/quantscan/pkg/logger"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// Client handles communication with Naver Finance
// ⭐ SSOT: Naver Finance API 호출은 이 클라이언트에서만
type Client struct {
	httpClient  *httputil.Client
	logger      *logger.Logger
	baseURL     string
	chartURL    string
	stockAPIURL string
}

// NewClient creates a new Naver Finance client
func NewClient(cfg config.NaverConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient:  httpClient,
		logger:      log.WithComponent("naver"),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		chartURL:    strings.TrimRight(cfg.ChartURL, "/"),
		stockAPIURL: strings.TrimRight(cfg.StockAPIURL, "/"),
	}
}

// get fetches a URL with browser headers and returns the body
func (c *Client) get(ctx context.Context, base, path string, params url.Values) ([]byte, error) {
	fullURL := base + path
	if len(params) > 0 {
		fullURL = fmt.Sprintf("%s?%s", fullURL, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", "https://finance.naver.com/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	return httputil.ReadBody(resp)
}

// InvestorFlowData represents investor trading flow of one day
type InvestorFlowData struct {
	StockCode      string
	TradeDate      time.Time
	ForeignNet     int64   // 외국인 순매수
	InstitutionNet int64   // 기관 순매수
	IndividualNet  int64   // 개인 순매수 (계산)
	ForeignOwnPct  float64 // 외국인 보유율
}
