// Package profile はIDプロバイダーのプロファイルストアAPIクライアントを提供する。
// ユーザープロファイルの取得と解放済みコレクション集合の書き込みを行う。
// プロファイルストアは結果整合性を持つ外部KVサービスとして扱い、
// 呼び出し間のトランザクション性は仮定しない。
package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/starstream/internal/model"
)

// LatencyRecorder はプロファイルストア呼び出しのレイテンシ記録インターフェース。
// metrics.MetricsCollectorの部分集合として定義する。
type LatencyRecorder interface {
	RecordProfileStoreLatency(operation string, duration time.Duration)
}

// Config はプロファイルストアクライアントの設定。
type Config struct {
	BaseURL string // 例: "https://api.netlify.com/api/v1"
	SiteID  string
	Token   string // 特権サービストークン。エンドユーザーのセッションとは別物
	Timeout time.Duration
}

// Client はプロファイルストアAPIのクライアント。
// 特権サービストークンで認証し、ユーザープロファイルの読み書きを行う。
type Client struct {
	httpClient *http.Client
	config     Config
	logger     *slog.Logger
	recorder   LatencyRecorder // nilの場合は記録しない
}

// NewClient はClientの新しいインスタンスを生成する。
// recorderはnilを許容する。
func NewClient(config Config, logger *slog.Logger, recorder LatencyRecorder) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
		logger:     logger,
		recorder:   recorder,
	}
}

// identityUser はプロファイルストアAPIのユーザー表現。
type identityUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	AppMetadata struct {
		UnlockedCollections []string `json:"unlocked_collections"`
	} `json:"app_metadata"`
}

// userURL は管理APIのユーザーリソースURLを構築する。
func (c *Client) userURL(userID string) string {
	return fmt.Sprintf("%s/sites/%s/identity/users/%s", c.config.BaseURL, c.config.SiteID, userID)
}

// GetProfile は指定ユーザーのプロファイルを取得する。
// 見つからない場合はnilを返す。
func (c *Client) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	start := time.Now()
	defer c.record("get_profile", start)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userURL(userID), nil)
	if err != nil {
		return nil, fmt.Errorf("プロファイル取得リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("プロファイルストアの呼び出しに失敗しました",
			slog.String("operation", "get_profile"),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("プロファイルストアの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("プロファイルストアがエラーステータスを返しました",
			slog.String("operation", "get_profile"),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("プロファイルストアがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var user identityUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("プロファイルのパースに失敗しました: %w", err)
	}

	return &model.UserProfile{
		UserID:              user.ID,
		Email:               user.Email,
		UnlockedCollections: user.AppMetadata.UnlockedCollections,
	}, nil
}

// SetUnlockedCollections は指定ユーザーの解放済みコレクション集合を書き込む。
// 集合全体を置き換えるため、呼び出し元は現在値との和集合を渡すこと。
func (c *Client) SetUnlockedCollections(ctx context.Context, userID string, collections []string) error {
	start := time.Now()
	defer c.record("set_unlocked_collections", start)

	payload := map[string]any{
		"app_metadata": map[string]any{
			"unlocked_collections": collections,
		},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("リクエストボディの構築に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.userURL(userID), bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("プロファイル更新リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("プロファイルストアの呼び出しに失敗しました",
			slog.String("operation", "set_unlocked_collections"),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("プロファイルストアの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		c.logger.Error("プロファイルストアがエラーステータスを返しました",
			slog.String("operation", "set_unlocked_collections"),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("プロファイルストアがステータス %d を返しました", resp.StatusCode)
	}

	return nil
}

// VerifyIdentityToken はエンドユーザーのIDトークンを検証し、本人のプロファイルを返す。
// トークンが無効な場合はエラーを返す。
func (c *Client) VerifyIdentityToken(ctx context.Context, token string) (*model.UserProfile, error) {
	start := time.Now()
	defer c.record("verify_token", start)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("トークン検証リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("IDプロバイダーの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, model.NewSessionInvalidError()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("IDプロバイダーがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var user identityUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("ユーザー情報のパースに失敗しました: %w", err)
	}
	if user.ID == "" {
		return nil, model.NewSessionInvalidError()
	}

	return &model.UserProfile{
		UserID:              user.ID,
		Email:               user.Email,
		UnlockedCollections: user.AppMetadata.UnlockedCollections,
	}, nil
}

// record はレイテンシを記録する。recorderがnilの場合は何もしない。
func (c *Client) record(operation string, start time.Time) {
	if c.recorder != nil {
		c.recorder.RecordProfileStoreLatency(operation, time.Since(start))
	}
}
