package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/starstream/internal/middleware"
)

// HealthPinger は依存先の疎通確認インターフェース。
type HealthPinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// チェックアウト
	CheckoutService CheckoutServiceInterface

	// Webhook
	WebhookService WebhookServiceInterface

	// プロファイル・カタログ
	ProfileClient ProfileGetter
	CatalogStore  CatalogSource

	// ヘルスチェック
	DB HealthPinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → (ルートごと) CSRF / Session / RateLimit
//
// Webhookルート（/webhooks/*）はCookieセッションを使わないため、
// CSRF・セッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	checkoutHandler := NewCheckoutHandler(deps.CheckoutService)
	webhookHandler := NewWebhookHandler(deps.WebhookService)
	profileHandler := NewProfileHandler(deps.ProfileClient)
	catalogHandler := NewCatalogHandler(deps.CatalogStore, deps.ProfileClient)

	// --- ゲートウェイ向けルート（CSRF・セッションなし） ---
	r.Post("/webhooks/payment", webhookHandler.HandleWebhook)

	// --- ヘルスチェック ---
	r.Get("/health", healthHandler(deps.DB))

	// --- ブラウザ向けルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// 認証ルート
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
		})

		// CSRFトークン取得
		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		// カタログ（匿名アクセス可）
		r.With(middleware.NewOptionalSessionMiddleware(deps.SessionFinder)).
			Get("/api/catalog", catalogHandler.ListCatalog)

		// 認証が必要なルート
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/api/me", profileHandler.Me)

			// チェックアウト作成（専用レート制限を追加）
			r.With(deps.RateLimiter.CheckoutMiddleware()).
				Post("/api/checkout", checkoutHandler.CreateCheckout)
		})
	})

	return r
}

// healthHandler は依存先の疎通を確認するヘルスチェックハンドラーを返す。
func healthHandler(db HealthPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				status = "unavailable"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
