package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Payment Gateway
	GatewaySecretKey     string
	GatewayAPIBase       string
	GatewayTimeout       time.Duration
	WebhookSigningSecret string
	WebhookTolerance     time.Duration

	// Identity / Profile Store
	IdentityAPIToken string
	IdentitySiteID   string
	IdentityAPIBase  string
	IdentityTimeout  time.Duration

	// Entitlement
	PremiumCollectionID string
	DefaultProductName  string

	// Session
	SessionMaxAge int

	// Catalog
	CatalogFeedURL        string
	CatalogFetchInterval  time.Duration
	CatalogFetchTimeout   time.Duration
	CatalogFetchMaxSize   int64

	// Rate Limit
	RateLimitGeneral  int
	RateLimitCheckout int

	// Retention
	EventRetentionDays int

	// Server
	ServerPort  string
	MetricsPort string
	BaseURL     string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// Webhook署名シークレットやゲートウェイ認証情報の欠落は起動時点で失敗させる。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GatewaySecretKey = os.Getenv("STRIPE_SECRET_KEY")
	if cfg.GatewaySecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}

	cfg.WebhookSigningSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	if cfg.WebhookSigningSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}

	cfg.IdentityAPIToken = os.Getenv("IDENTITY_API_TOKEN")
	if cfg.IdentityAPIToken == "" {
		missing = append(missing, "IDENTITY_API_TOKEN")
	}

	cfg.IdentitySiteID = os.Getenv("IDENTITY_SITE_ID")
	if cfg.IdentitySiteID == "" {
		missing = append(missing, "IDENTITY_SITE_ID")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.GatewayAPIBase = getEnvString("GATEWAY_API_BASE", "https://api.stripe.com")
	cfg.GatewayTimeout = getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second)
	cfg.WebhookTolerance = getEnvDuration("WEBHOOK_TOLERANCE", 5*time.Minute)
	cfg.IdentityAPIBase = getEnvString("IDENTITY_API_BASE", "https://api.netlify.com/api/v1")
	cfg.IdentityTimeout = getEnvDuration("IDENTITY_TIMEOUT", 5*time.Second)
	cfg.PremiumCollectionID = getEnvString("PREMIUM_COLLECTION_ID", "jaron-ikner-collection")
	cfg.DefaultProductName = getEnvString("DEFAULT_PRODUCT_NAME", "Starstream: Jaron Ikner Collection")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.CatalogFeedURL = getEnvString("CATALOG_FEED_URL", "")
	cfg.CatalogFetchInterval = getEnvDuration("CATALOG_FETCH_INTERVAL", 30*time.Minute)
	cfg.CatalogFetchTimeout = getEnvDuration("CATALOG_FETCH_TIMEOUT", 10*time.Second)
	cfg.CatalogFetchMaxSize = getEnvInt64("CATALOG_FETCH_MAX_SIZE", 5242880)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitCheckout = getEnvInt("RATE_LIMIT_CHECKOUT", 10)
	cfg.EventRetentionDays = getEnvInt("EVENT_RETENTION_DAYS", 90)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5173")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
