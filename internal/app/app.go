package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/starstream/internal/auth"
	"github.com/hitoshi/starstream/internal/catalog"
	"github.com/hitoshi/starstream/internal/config"
	"github.com/hitoshi/starstream/internal/database"
	"github.com/hitoshi/starstream/internal/entitlement"
	"github.com/hitoshi/starstream/internal/handler"
	"github.com/hitoshi/starstream/internal/logger"
	"github.com/hitoshi/starstream/internal/metrics"
	"github.com/hitoshi/starstream/internal/middleware"
	"github.com/hitoshi/starstream/internal/payment"
	"github.com/hitoshi/starstream/internal/profile"
	"github.com/hitoshi/starstream/internal/repository"
	"github.com/hitoshi/starstream/internal/security"
	"github.com/hitoshi/starstream/internal/webhook"
	"github.com/hitoshi/starstream/internal/worker/cleanup"
	ingestpkg "github.com/hitoshi/starstream/internal/worker/ingest"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	eventRepo := repository.NewPostgresWebhookEventRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 外部サービスクライアントの初期化
	profileClient := profile.NewClient(profile.Config{
		BaseURL: cfg.IdentityAPIBase,
		SiteID:  cfg.IdentitySiteID,
		Token:   cfg.IdentityAPIToken,
		Timeout: cfg.IdentityTimeout,
	}, slog.Default(), collector)

	gatewayClient := payment.NewGatewayClient(payment.GatewayConfig{
		APIBase:   cfg.GatewayAPIBase,
		SecretKey: cfg.GatewaySecretKey,
		Timeout:   cfg.GatewayTimeout,
	}, slog.Default())

	// 5. ドメインサービスの初期化
	authService := auth.NewService(
		profileClient, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
		slog.Default(),
	)

	checkoutService := payment.NewService(gatewayClient, payment.ServiceConfig{
		BaseURL:             cfg.BaseURL,
		PremiumCollectionID: cfg.PremiumCollectionID,
		DefaultProductName:  cfg.DefaultProductName,
	}, slog.Default(), collector)

	entitlementService := entitlement.NewService(profileClient, slog.Default())
	defer entitlementService.Stop()

	verifier := webhook.NewVerifier(cfg.WebhookSigningSecret, cfg.WebhookTolerance)
	webhookService := webhook.NewService(verifier, eventRepo, entitlementService, slog.Default(), collector)

	catalogStore := catalog.NewStore()

	// カタログ取り込みはフィードURLが設定されている場合のみ起動する。
	// ストアはプロセス内メモリのため、APIサーバーと同じプロセスで更新する。
	ingestCtx, ingestCancel := context.WithCancel(context.Background())
	defer ingestCancel()
	if cfg.CatalogFeedURL != "" {
		ingester := catalog.NewIngester(catalog.IngesterConfig{
			FeedURL:     cfg.CatalogFeedURL,
			Timeout:     cfg.CatalogFetchTimeout,
			MaxBodySize: cfg.CatalogFetchMaxSize,
		}, catalogStore, security.NewSSRFGuard(), security.NewContentSanitizer(), slog.Default())

		scheduler := ingestpkg.NewScheduler(ingester, slog.Default())
		go scheduler.Start(ingestCtx, cfg.CatalogFetchInterval)
	}

	// 6. ルーターの構築
	// configのレート制限はreq/min単位なのでreq/secに変換する
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		CheckoutRate:    rate.Limit(float64(cfg.RateLimitCheckout) / 60.0),
		CheckoutBurst:   cfg.RateLimitCheckout,
		CleanupInterval: 5 * time.Minute,
	})
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Logger: slog.Default(),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		CheckoutService: checkoutService,
		WebhookService:  webhookService,
		ProfileClient:   profileClient,
		CatalogStore:    catalogStore,
		DB:              db,
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// メトリクスは内部ネットワーク向けに別ポートで公開する
	metricsServer := &http.Server{
		Addr:        ":" + cfg.MetricsPort,
		Handler:     metrics.SetupMetricsRoute(registry),
		ReadTimeout: 15 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("metrics server starting",
			slog.String("addr", metricsServer.Addr),
		)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := metricsServer.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 保持期間を超過した運用データのクリーンアップジョブを日次で実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	eventRepo := repository.NewPostgresWebhookEventRepo(db)

	// 3. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(eventRepo, sessionRepo, slog.Default())
	cleanupJob.RetentionDays = cfg.EventRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Int("event_retention_days", cfg.EventRetentionDays),
	)

	// クリーンアップジョブを日次で実行（ブロッキング）
	// 起動直後に1回実行
	if err := cleanupJob.Run(ctx); err != nil {
		slog.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped gracefully")
			return nil
		case <-ticker.C:
			if err := cleanupJob.Run(ctx); err != nil {
				slog.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
