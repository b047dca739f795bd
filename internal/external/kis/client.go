package kis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wonny/quantscan/pkg/config"
	"github.com/wonny/quantscan/pkg/httputil"
	"github.com/wonny/quantscan/pkg/logger"
)

// ErrNotConfigured is returned when KIS credentials are missing
var ErrNotConfigured = errors.New("KIS credentials not configured")

// Client handles communication with KIS (한국투자증권) API
// ⭐ SSOT: KIS API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.KISConfig

	// Token management
	accessToken string
	tokenExpiry time.Time
	tokenMu     sync.RWMutex
	tokenGroup  singleflight.Group
}

// NewClient creates a new KIS API client
func NewClient(cfg config.KISConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("kis"),
		cfg:        cfg,
	}
}

// Configured reports whether credentials exist
func (c *Client) Configured() bool {
	return c.cfg.Configured()
}

// TokenResponse represents the OAuth token response
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// getToken gets a valid access token, refreshing if necessary.
// 동시 만료 시 발급 요청은 singleflight로 1회만 수행
func (c *Client) getToken(ctx context.Context) (string, error) {
	c.tokenMu.RLock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		token := c.accessToken
		c.tokenMu.RUnlock()
		return token, nil
	}
	c.tokenMu.RUnlock()

	v, err, _ := c.tokenGroup.Do("token", func() (interface{}, error) {
		// Double-check: 앞선 호출이 이미 갱신했을 수 있음
		c.tokenMu.RLock()
		if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
			token := c.accessToken
			c.tokenMu.RUnlock()
			return token, nil
		}
		c.tokenMu.RUnlock()
		return c.refreshToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) refreshToken(ctx context.Context) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	body := map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.cfg.AppKey,
		"appsecret":  c.cfg.AppSecret,
	}

	resp, err := c.httpClient.PostJSON(ctx, c.cfg.BaseURL+"/oauth2/tokenP", body)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	data, err := httputil.ReadBody(resp)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(data, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token response without access_token")
	}

	c.tokenMu.Lock()
	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second) // 1분 여유
	c.tokenMu.Unlock()

	c.logger.WithFields(map[string]interface{}{
		"expires_in": tokenResp.ExpiresIn,
	}).Info("KIS access token refreshed")

	return tokenResp.AccessToken, nil
}

// envelope is the common KIS response wrapper
type envelope struct {
	RtCd    string          `json:"rt_cd"`
	MsgCd   string          `json:"msg_cd"`
	Msg1    string          `json:"msg1"`
	Output  json.RawMessage `json:"output"`
	Output1 json.RawMessage `json:"output1"`
	Output2 json.RawMessage `json:"output2"`
}

// quotation makes an authenticated GET to a quotations endpoint
func (c *Client) quotation(ctx context.Context, path, trID string, params url.Values) (*envelope, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	fullURL := fmt.Sprintf("%s%s?%s", strings.TrimRight(c.cfg.BaseURL, "/"), path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// Set required headers
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("authorization", "Bearer "+token)
	req.Header.Set("appkey", c.cfg.AppKey)
	req.Header.Set("appsecret", c.cfg.AppSecret)
	req.Header.Set("tr_id", trID)
	req.Header.Set("custtype", "P")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", trID, err)
	}
	data, err := httputil.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", trID, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", trID, err)
	}
	if env.RtCd != "0" {
		return nil, fmt.Errorf("API error %s: %s - %s", trID, env.MsgCd, env.Msg1)
	}
	return &env, nil
}

// decodeFirst decodes an object, or the first element of an array
func decodeFirst(raw json.RawMessage, v interface{}) error {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return fmt.Errorf("empty output")
	}
	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("empty output")
		}
		raw = items[0]
	}
	return json.Unmarshal(raw, v)
}
