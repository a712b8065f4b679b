package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/starstream/internal/webhook"
)

// signatureHeaderName は決済ゲートウェイの署名ヘッダー名。
const signatureHeaderName = "Stripe-Signature"

// webhookMaxBodySize はWebhookボディの最大サイズ。
// ゲートウェイのイベントは数KB程度であり、これを大きく超えるボディは不正。
const webhookMaxBodySize = 1 << 20 // 1MiB

// WebhookServiceInterface はWebhookハンドラーが必要とするサービスインターフェース。
type WebhookServiceInterface interface {
	HandleEvent(ctx context.Context, body []byte, signatureHeader string) webhook.Result
}

// WebhookHandler は決済ゲートウェイWebhookのHTTPハンドラー。
type WebhookHandler struct {
	service WebhookServiceInterface
}

// NewWebhookHandler はWebhookHandlerを生成する。
func NewWebhookHandler(service WebhookServiceInterface) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// HandleWebhook は決済ゲートウェイからのWebhookを処理する。
// POST /webhooks/payment
// 署名不正・ボディ不正は400、適用失敗と適用中の再配信は500（ゲートウェイが再送する）、
// それ以外は200で {"received": true} を返す。レスポンスに内部情報は含めない。
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, webhookMaxBodySize))
	if err != nil {
		slog.Error("failed to read webhook body", slog.String("error", err.Error()))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	result := h.service.HandleEvent(r.Context(), body, r.Header.Get(signatureHeaderName))

	switch result.Outcome {
	case webhook.OutcomeInvalidSignature, webhook.OutcomeMalformed:
		http.Error(w, "bad request", http.StatusBadRequest)
	case webhook.OutcomeApplyFailed, webhook.OutcomeInFlight:
		http.Error(w, "internal server error", http.StatusInternalServerError)
	default:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"received": true})
	}
}
