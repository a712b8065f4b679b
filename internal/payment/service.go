package payment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/hitoshi/starstream/internal/model"
)

// CheckoutGateway はチェックアウトセッションを作成するゲートウェイのインターフェース。
type CheckoutGateway interface {
	CreateCheckoutSession(ctx context.Context, params CreateSessionParams) (*model.CheckoutSession, error)
}

// CheckoutMetrics はチェックアウト関連のメトリクス記録インターフェース。
type CheckoutMetrics interface {
	RecordCheckoutCreated()
	RecordCheckoutFailure(reason string)
}

// ServiceConfig はチェックアウトサービスの設定。
type ServiceConfig struct {
	BaseURL             string
	PremiumCollectionID string
	DefaultProductName  string
}

// Service はチェックアウト開始のビジネスロジックを提供する。
type Service struct {
	gateway CheckoutGateway
	config  ServiceConfig
	logger  *slog.Logger
	metrics CheckoutMetrics // nilの場合は記録しない
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(gateway CheckoutGateway, config ServiceConfig, logger *slog.Logger, metrics CheckoutMetrics) *Service {
	return &Service{
		gateway: gateway,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

// CreateCheckoutInput はチェックアウト開始のリクエスト。
// Priceはドル単位の10進文字列。
type CreateCheckoutInput struct {
	Price     string
	ItemTitle string
	UserID    string
	UserEmail string
}

// CreateCheckout はチェックアウトセッションを作成し、決済ページのURLを返す。
// 未ログインのリクエストは解放対象ユーザーを特定できないため作成時点で拒否する。
func (s *Service) CreateCheckout(ctx context.Context, input CreateCheckoutInput) (string, error) {
	if input.UserID == "" {
		s.recordFailure("login_required")
		return "", model.NewLoginRequiredError()
	}

	amountCents, err := parseAmountCents(input.Price)
	if err != nil {
		s.recordFailure("invalid_price")
		return "", err
	}

	productName := s.config.DefaultProductName
	if input.ItemTitle != "" {
		productName = input.ItemTitle
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, CreateSessionParams{
		UserID:       input.UserID,
		CollectionID: s.config.PremiumCollectionID,
		ProductName:  productName,
		AmountCents:  amountCents,
		SuccessURL:   s.config.BaseURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:    s.config.BaseURL + "/cancel",
	})
	if err != nil {
		s.recordFailure("gateway_error")
		return "", err
	}

	s.logger.Info("チェックアウトセッションを作成しました",
		slog.String("session_id", session.SessionID),
		slog.String("user_id", input.UserID),
		slog.Int64("amount_cents", amountCents),
	)
	if s.metrics != nil {
		s.metrics.RecordCheckoutCreated()
	}

	return session.URL, nil
}

// parseAmountCents はドル単位の10進文字列をセント単位に変換する。
// 正の有限値のみ許可し、セント未満は四捨五入する。
func parseAmountCents(price string) (int64, error) {
	dollars, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return 0, model.NewInvalidPriceError(fmt.Sprintf("数値として解釈できません: %q", price))
	}
	if math.IsNaN(dollars) || math.IsInf(dollars, 0) {
		return 0, model.NewInvalidPriceError("有限の数値ではありません")
	}
	if dollars <= 0 {
		return 0, model.NewInvalidPriceError("金額は正の値でなければなりません")
	}
	return int64(math.Round(dollars * 100)), nil
}

func (s *Service) recordFailure(reason string) {
	if s.metrics != nil {
		s.metrics.RecordCheckoutFailure(reason)
	}
}
