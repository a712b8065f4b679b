package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/starstream/internal/model"
	"github.com/hitoshi/starstream/internal/repository"
)

// Outcome はWebhookイベント処理の結果分類。
type Outcome string

const (
	OutcomeInvalidSignature Outcome = "invalid_signature" // 署名検証失敗。400を返す
	OutcomeMalformed        Outcome = "malformed"         // ボディが解釈不能。400を返す
	OutcomeIgnored          Outcome = "ignored"           // 対象外のイベント種別。200でACK
	OutcomeNoOp             Outcome = "noop"              // 必須フィールド欠落。200でACK
	OutcomeDuplicate        Outcome = "duplicate"         // 適用完了済みイベント。200でACK
	OutcomeInFlight         Outcome = "in_flight"         // 別の配信が適用中。500でゲートウェイの再送を促す
	OutcomeApplied          Outcome = "applied"           // 解放を適用した。200でACK
	OutcomeApplyFailed      Outcome = "apply_failed"      // 適用失敗。500でゲートウェイの再送を促す
)

// Result はHandleEventの処理結果。
type Result struct {
	Outcome Outcome
	EventID string
	Err     error
}

// EntitlementGranter は解放付与のインターフェース。
type EntitlementGranter interface {
	Grant(ctx context.Context, userID, collectionID string) (bool, error)
}

// EventMetrics はWebhook処理のメトリクス記録インターフェース。
type EventMetrics interface {
	RecordWebhookReceived(eventType string)
	RecordWebhookSignatureFailure()
	RecordWebhookApplied()
	RecordWebhookDuplicate()
	RecordWebhookNoOp()
}

// Service はWebhookイベント処理の状態機械を実装する。
type Service struct {
	verifier *Verifier
	events   repository.WebhookEventRepository
	granter  EntitlementGranter
	logger   *slog.Logger
	metrics  EventMetrics // nilの場合は記録しない
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(verifier *Verifier, events repository.WebhookEventRepository, granter EntitlementGranter, logger *slog.Logger, metrics EventMetrics) *Service {
	return &Service{
		verifier: verifier,
		events:   events,
		granter:  granter,
		logger:   logger,
		metrics:  metrics,
	}
}

// gatewayEvent はゲートウェイのイベントペイロード。
// 解放対象の特定にはゲートウェイが署名したフィールドのみを使う。
type gatewayEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string `json:"id"`
			ClientReferenceID string `json:"client_reference_id"`
			Metadata          struct {
				CollectionID string `json:"collection_id"`
			} `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// HandleEvent は署名検証から解放適用までの一連の処理を行う。
// 検証 → 種別フィルタ → フィールド抽出 → 重複排除 → 適用 → 完了記録の順に進む。
// 同一イベントの再送はevent_idの占有行で排除し、適用失敗時は占有を解放して
// ゲートウェイの再送で再処理できるようにする。
// 適用が完了する前の再配信はACKしない。先行の配信が失敗して占有を解放する
// 可能性がある間にACKすると、ゲートウェイが再送を止めて解放が失われるため。
func (s *Service) HandleEvent(ctx context.Context, body []byte, signatureHeader string) Result {
	if err := s.verifier.Verify(signatureHeader, body); err != nil {
		s.logger.Warn("Webhook署名の検証に失敗しました",
			slog.String("error", err.Error()),
		)
		if s.metrics != nil {
			s.metrics.RecordWebhookSignatureFailure()
		}
		return Result{Outcome: OutcomeInvalidSignature, Err: model.NewInvalidSignatureError()}
	}

	var event gatewayEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.logger.Warn("Webhookボディの解析に失敗しました",
			slog.String("error", err.Error()),
		)
		return Result{Outcome: OutcomeMalformed, Err: fmt.Errorf("イベントボディの解析に失敗しました: %w", err)}
	}
	if s.metrics != nil {
		s.metrics.RecordWebhookReceived(event.Type)
	}

	if event.Type != model.EventTypeCheckoutCompleted {
		s.logger.Info("対象外のイベント種別を受信しました",
			slog.String("event_id", event.ID),
			slog.String("event_type", event.Type),
		)
		return Result{Outcome: OutcomeIgnored, EventID: event.ID}
	}

	userID := event.Data.Object.ClientReferenceID
	collectionID := event.Data.Object.Metadata.CollectionID
	if event.ID == "" || userID == "" || collectionID == "" {
		s.logger.Warn("必須フィールドが欠落したイベントを受信しました",
			slog.String("event_id", event.ID),
			slog.Bool("has_user_id", userID != ""),
			slog.Bool("has_collection_id", collectionID != ""),
		)
		if s.metrics != nil {
			s.metrics.RecordWebhookNoOp()
		}
		return Result{Outcome: OutcomeNoOp, EventID: event.ID}
	}

	state, err := s.events.Claim(ctx, &model.ProcessedEvent{
		EventID:      event.ID,
		EventType:    event.Type,
		SessionID:    event.Data.Object.ID,
		UserID:       userID,
		CollectionID: collectionID,
		ProcessedAt:  time.Now(),
	})
	if err != nil {
		return Result{Outcome: OutcomeApplyFailed, EventID: event.ID, Err: fmt.Errorf("イベントの占有に失敗しました: %w", err)}
	}
	switch state {
	case repository.ClaimCompleted:
		s.logger.Info("適用完了済みイベントの再送をスキップしました",
			slog.String("event_id", event.ID),
		)
		if s.metrics != nil {
			s.metrics.RecordWebhookDuplicate()
		}
		return Result{Outcome: OutcomeDuplicate, EventID: event.ID}
	case repository.ClaimInFlight:
		s.logger.Warn("適用中のイベントの再送を受信しました",
			slog.String("event_id", event.ID),
		)
		return Result{Outcome: OutcomeInFlight, EventID: event.ID, Err: fmt.Errorf("イベント %s は別の配信が適用中です", event.ID)}
	}

	changed, err := s.granter.Grant(ctx, userID, collectionID)
	if err != nil {
		// 占有を解放し、ゲートウェイの再送で再処理できるようにする
		if releaseErr := s.events.Release(ctx, event.ID); releaseErr != nil {
			s.logger.Error("イベント占有の解放に失敗しました",
				slog.String("event_id", event.ID),
				slog.String("error", releaseErr.Error()),
			)
		}
		s.logger.Error("解放の適用に失敗しました",
			slog.String("event_id", event.ID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return Result{Outcome: OutcomeApplyFailed, EventID: event.ID, Err: err}
	}

	// 完了記録に失敗してもACKする。解放は適用済みで、Grantは冪等なので、
	// processing行が残る影響は以降の再送が500を受け続けることに留まる
	if err := s.events.MarkCompleted(ctx, event.ID); err != nil {
		s.logger.Error("イベントの完了記録に失敗しました",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("Webhookイベントを適用しました",
		slog.String("event_id", event.ID),
		slog.String("user_id", userID),
		slog.String("collection_id", collectionID),
		slog.Bool("changed", changed),
	)
	if s.metrics != nil {
		s.metrics.RecordWebhookApplied()
	}

	return Result{Outcome: OutcomeApplied, EventID: event.ID}
}
