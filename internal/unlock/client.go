// Package unlock はブラウザと同等の解放フローを実行するAPIクライアントを提供する。
// チェックアウト開始から決済完了後のエンタイトルメント反映確認までを担う。
package unlock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/hitoshi/starstream/internal/model"
)

// デフォルト設定値
const (
	DefaultMaxAttempts = 10
	DefaultBaseBackoff = 500 * time.Millisecond
	DefaultMaxBackoff  = 8 * time.Second
	defaultTimeout     = 10 * time.Second
)

// ErrEntitlementNotReady は試行回数を使い切ってもコレクションが
// 解放済みにならなかったことを示す。Webhookの遅延時に発生しうるため、
// 呼び出し側は後から再確認してよい。
var ErrEntitlementNotReady = fmt.Errorf("entitlement not reflected within retry budget")

// Config はunlockクライアントの設定。
type Config struct {
	BaseURL     string        // ストアフロントAPIのベースURL
	Timeout     time.Duration // HTTPリクエストのタイムアウト
	MaxAttempts int           // AwaitEntitlementの最大試行回数
	BaseBackoff time.Duration // バックオフの初期値
	MaxBackoff  time.Duration // バックオフの上限
}

func (c *Config) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseBackoff == 0 {
		c.BaseBackoff = DefaultBaseBackoff
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
}

// Client はCookieセッションを保持するストアフロントAPIクライアント。
// ブラウザと同様にセッションCookieとCSRFトークンを自動で扱う。
type Client struct {
	httpClient *http.Client
	config     Config
	logger     *slog.Logger
	csrfToken  string
}

// NewClient はCookieジャーを備えたClientを生成する。
func NewClient(config Config, logger *slog.Logger) (*Client, error) {
	config.applyDefaults()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: config.Timeout,
		},
		config: config,
		logger: logger,
	}, nil
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Token string `json:"token"`
}

// Login はIDトークンでセッションを確立する。
// セッションCookieはCookieジャーに保持され、以降のリクエストに自動で付与される。
func (c *Client) Login(ctx context.Context, identityToken string) error {
	body, err := json.Marshal(loginRequest{Token: identityToken})
	if err != nil {
		return fmt.Errorf("failed to marshal login request: %w", err)
	}

	resp, err := c.postJSON(ctx, "/auth/login", body, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	return nil
}

// checkoutRequest はチェックアウト開始リクエストのボディ。
type checkoutRequest struct {
	Price     string `json:"price"`
	ItemTitle string `json:"item_title"`
}

// checkoutResponse はチェックアウト開始のレスポンス。
type checkoutResponse struct {
	URL string `json:"url"`
}

// StartUnlock はチェックアウトセッションを作成し、決済ページへのリダイレクトURLを返す。
// 事前にLoginでセッションを確立しておくこと。
func (c *Client) StartUnlock(ctx context.Context, price, itemTitle string) (string, error) {
	if err := c.ensureCSRFToken(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(checkoutRequest{Price: price, ItemTitle: itemTitle})
	if err != nil {
		return "", fmt.Errorf("failed to marshal checkout request: %w", err)
	}

	resp, err := c.postJSON(ctx, "/api/checkout", body, c.csrfToken)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp)
	}

	var result checkoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode checkout response: %w", err)
	}
	if result.URL == "" {
		return "", fmt.Errorf("checkout response missing redirect URL")
	}
	return result.URL, nil
}

// profileResponse はGET /api/meのレスポンス。
type profileResponse struct {
	ID                  string   `json:"id"`
	Email               string   `json:"email"`
	UnlockedCollections []string `json:"unlocked_collections"`
}

// AwaitEntitlement は指定コレクションが解放済みになるまで
// GET /api/meを指数バックオフ付きでポーリングする。
// 決済完了ページへの戻りは完了のヒントにすぎないため、
// 必ずサーバー側のプロファイルを再取得して確認する。
func (c *Client) AwaitEntitlement(ctx context.Context, collectionID string) error {
	backoff := c.config.BaseBackoff

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		profile, err := c.fetchProfile(ctx)
		if err != nil {
			c.logger.Warn("profile poll failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		} else {
			for _, id := range profile.UnlockedCollections {
				if id == collectionID {
					c.logger.Info("entitlement confirmed",
						slog.String("collection_id", collectionID),
						slog.Int("attempt", attempt),
					)
					return nil
				}
			}
		}

		if attempt == c.config.MaxAttempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if backoff > c.config.MaxBackoff {
			backoff = c.config.MaxBackoff
		}
	}

	return fmt.Errorf("collection %s: %w", collectionID, ErrEntitlementNotReady)
}

func (c *Client) fetchProfile(ctx context.Context) (*profileResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/me", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var profile profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile response: %w", err)
	}
	return &profile, nil
}

// csrfTokenResponse はGET /api/csrf-tokenのレスポンス。
type csrfTokenResponse struct {
	Token string `json:"token"`
}

// ensureCSRFToken はCSRFトークンを未取得の場合にのみ取得する。
// トークンはCookieとペアでサーバーが検証するため、同一クライアントで使い回せる。
func (c *Client) ensureCSRFToken(ctx context.Context) error {
	if c.csrfToken != "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/csrf-token", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("csrf token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("csrf token request returned status %d", resp.StatusCode)
	}

	var result csrfTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode csrf token response: %w", err)
	}
	if result.Token == "" {
		return fmt.Errorf("csrf token response missing token")
	}

	c.csrfToken = result.Token
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body []byte, csrfToken string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if csrfToken != "" {
		req.Header.Set("X-CSRF-Token", csrfToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	return resp, nil
}

// decodeAPIError はエラーレスポンスボディをAPIErrorに復元する。
// 統一フォーマットでないボディは一般的なエラーとして扱う。
func decodeAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("api returned status %d", resp.StatusCode)
	}

	var apiErr struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		Category string `json:"category"`
		Action   string `json:"action"`
	}
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Code == "" {
		return fmt.Errorf("api returned status %d", resp.StatusCode)
	}

	return &model.APIError{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
}
