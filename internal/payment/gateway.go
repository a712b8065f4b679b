// Package payment は決済ゲートウェイとの連携を提供する。
// チェックアウトセッションの作成と金額検証を行う。
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/starstream/internal/model"
)

// GatewayConfig は決済ゲートウェイクライアントの設定。
type GatewayConfig struct {
	APIBase   string // 例: "https://api.stripe.com"
	SecretKey string
	Timeout   time.Duration
}

// GatewayClient は決済ゲートウェイのHTTPクライアント。
// APIはフォームエンコードされたリクエストを受け付け、JSONを返す。
type GatewayClient struct {
	httpClient *http.Client
	config     GatewayConfig
	logger     *slog.Logger
}

// NewGatewayClient はGatewayClientの新しいインスタンスを生成する。
func NewGatewayClient(config GatewayConfig, logger *slog.Logger) *GatewayClient {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &GatewayClient{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
		logger:     logger,
	}
}

// CreateSessionParams はチェックアウトセッション作成のパラメータ。
type CreateSessionParams struct {
	UserID       string
	CollectionID string
	ProductName  string
	AmountCents  int64
	SuccessURL   string
	CancelURL    string
}

// checkoutSessionResponse はゲートウェイのセッション作成レスポンス。
type checkoutSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckoutSession はゲートウェイにチェックアウトセッションを作成する。
// ユーザーIDはclient_reference_idに、コレクションIDはmetadataに載せ、
// 決済完了Webhookで解放対象を特定できるようにする。
func (c *GatewayClient) CreateCheckoutSession(ctx context.Context, params CreateSessionParams) (*model.CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", params.UserID)
	form.Set("metadata[collection_id]", params.CollectionID)
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", "usd")
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(params.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", params.ProductName)

	endpoint := c.config.APIBase + "/v1/checkout/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("セッション作成リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("決済ゲートウェイの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamError("payment_gateway")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// シークレットキーが混入し得るためボディはログに出さない
		c.logger.Error("決済ゲートウェイがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewUpstreamError("payment_gateway")
	}

	var session checkoutSessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("セッションレスポンスのパースに失敗しました: %w", err)
	}
	if session.ID == "" || session.URL == "" {
		return nil, fmt.Errorf("ゲートウェイのレスポンスが不完全です")
	}

	return &model.CheckoutSession{
		SessionID:    session.ID,
		URL:          session.URL,
		UserID:       params.UserID,
		CollectionID: params.CollectionID,
		AmountCents:  params.AmountCents,
	}, nil
}
