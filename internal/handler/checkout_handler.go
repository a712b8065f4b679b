// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/starstream/internal/middleware"
	"github.com/hitoshi/starstream/internal/model"
	"github.com/hitoshi/starstream/internal/payment"
)

// CheckoutServiceInterface はチェックアウトハンドラーが必要とするサービスインターフェース。
type CheckoutServiceInterface interface {
	CreateCheckout(ctx context.Context, input payment.CreateCheckoutInput) (string, error)
}

// CheckoutHandler はチェックアウト開始のHTTPハンドラー。
type CheckoutHandler struct {
	service CheckoutServiceInterface
}

// NewCheckoutHandler はCheckoutHandlerを生成する。
func NewCheckoutHandler(service CheckoutServiceInterface) *CheckoutHandler {
	return &CheckoutHandler{service: service}
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

// CreateCheckout はチェックアウトセッションを作成し、決済ページのURLを返す。
// POST /api/checkout
func (h *CheckoutHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	if session == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewLoginRequiredError())
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidPriceError("リクエストボディを解釈できません"))
		return
	}

	url, err := h.service.CreateCheckout(r.Context(), payment.CreateCheckoutInput{
		Price:     req.Price,
		ItemTitle: req.ItemTitle,
		UserID:    session.UserID,
		UserEmail: session.Email,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(checkoutResponse{URL: url})
}

// writeServiceError はサービス層のエラーをHTTPステータスにマッピングして書き込む。
// APIErrorでないエラーは詳細をログにのみ記録し、500を返す。
func writeServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("unexpected service error", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	status := http.StatusInternalServerError
	switch apiErr.Code {
	case model.ErrCodeInvalidPrice:
		status = http.StatusBadRequest
	case model.ErrCodeLoginRequired:
		status = http.StatusUnauthorized
	case model.ErrCodeSessionInvalid:
		status = http.StatusUnauthorized
	case model.ErrCodeProfileNotFound:
		status = http.StatusNotFound
	case model.ErrCodeUpstreamError:
		status = http.StatusBadGateway
	case model.ErrCodeInvalidSignature:
		status = http.StatusBadRequest
	}
	middleware.WriteErrorResponse(w, status, apiErr)
}
