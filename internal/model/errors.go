// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, payment, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidPrice     = "INVALID_PRICE"
	ErrCodeLoginRequired    = "LOGIN_REQUIRED"
	ErrCodeInvalidSignature = "INVALID_SIGNATURE"
	ErrCodeUpstreamError    = "UPSTREAM_ERROR"
	ErrCodeProfileNotFound  = "PROFILE_NOT_FOUND"
	ErrCodeSessionInvalid   = "SESSION_INVALID"
)

// NewInvalidPriceError は無効な金額エラーを生成する。
// 金額は正の数値でなければならない。
func NewInvalidPriceError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPrice,
		Message:  fmt.Sprintf("無効な金額です: %s", reason),
		Category: "validation",
		Action:   "正の金額を入力してください。",
	}
}

// NewLoginRequiredError は未ログインでの購入開始エラーを生成する。
// 匿名チェックアウトは解放対象のユーザーを特定できないため作成時点で拒否する。
func NewLoginRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginRequired,
		Message:  "購入にはログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewInvalidSignatureError は署名検証失敗エラーを生成する。
// レスポンスボディには一般的な文字列のみを含め、詳細はログにのみ記録する。
func NewInvalidSignatureError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSignature,
		Message:  "署名の検証に失敗しました。",
		Category: "auth",
		Action:   "Webhookエンドポイントの署名シークレット設定を確認してください。",
	}
}

// NewUpstreamError は外部サービス呼び出し失敗エラーを生成する。
// serviceには "payment_gateway" または "profile_store" を指定する。
func NewUpstreamError(service string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamError,
		Message:  fmt.Sprintf("外部サービスとの通信に失敗しました: %s", service),
		Category: "payment",
		Action:   "しばらく待ってから再度お試しください。再試行は安全です。",
	}
}

// NewProfileNotFoundError はプロファイル未検出エラーを生成する。
func NewProfileNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  fmt.Sprintf("ユーザープロファイルが見つかりません: %s", userID),
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewSessionInvalidError はIDトークン検証失敗エラーを生成する。
func NewSessionInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionInvalid,
		Message:  "IDトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
