// Package cleanup は運用データの自動削除ジョブを提供する。
// 保持期間（デフォルト90日）を超過した処理済みWebhookイベントと
// 期限切れセッションを日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// EventPruner は処理済みWebhookイベントの削除インターフェース。
type EventPruner interface {
	DeleteOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// SessionPruner は期限切れセッションの削除インターフェース。
type SessionPruner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupJob は保持期間を超過した運用データの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
// イベントレコードは重複排除のためにのみ保持しているため、
// ゲートウェイの再送ウィンドウを十分に超える期間が過ぎれば削除してよい。
type CleanupJob struct {
	events        EventPruner
	sessions      SessionPruner
	logger        *slog.Logger
	RetentionDays int // 処理済みイベントの保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は90日。
func NewCleanupJob(events EventPruner, sessions SessionPruner, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		events:        events,
		sessions:      sessions,
		logger:        logger,
		RetentionDays: 90,
	}
}

// Run は保持期間を超過したイベントと期限切れセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
// 片方の削除が失敗しても、もう片方は実行する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	var firstErr error

	deletedEvents, err := j.events.DeleteOlderThan(ctx, j.RetentionDays)
	if err != nil {
		j.logger.Error("Webhookイベントのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		firstErr = fmt.Errorf("Webhookイベントのクリーンアップに失敗: %w", err)
	}

	deletedSessions, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
		)
		if firstErr == nil {
			firstErr = fmt.Errorf("セッションのクリーンアップに失敗: %w", err)
		}
	}

	if firstErr != nil {
		return firstErr
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_events", deletedEvents),
		slog.Int64("deleted_sessions", deletedSessions),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
