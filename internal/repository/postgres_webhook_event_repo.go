package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/starstream/internal/model"
)

const (
	eventStatusProcessing = "processing"
	eventStatusCompleted  = "completed"
)

// staleClaimInterval は処理中のままの占有を横取りできるようになるまでの時間。
// 適用中にプロセスが落ちるとprocessing行だけが残るため、
// これを過ぎた再配信は占有を取り直して再処理する。
const staleClaimInterval = "5 minutes"

// PostgresWebhookEventRepo はPostgreSQLを使用した処理済みWebhookイベントリポジトリ。
type PostgresWebhookEventRepo struct {
	db *sql.DB
}

// NewPostgresWebhookEventRepo はPostgresWebhookEventRepoを生成する。
func NewPostgresWebhookEventRepo(db *sql.DB) *PostgresWebhookEventRepo {
	return &PostgresWebhookEventRepo{db: db}
}

// Claim はイベントの処理権を獲得する。
// INSERT ... ON CONFLICT により、同一event_idの同時配信でも
// ちょうど1つの呼び出しだけがClaimAcquiredを受け取る。
// 競合した場合は既存行の状態を調べ、適用中ならClaimInFlight、
// 完了済みならClaimCompletedを返す。放置されたprocessing行は横取りする。
func (r *PostgresWebhookEventRepo) Claim(ctx context.Context, event *model.ProcessedEvent) (ClaimState, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO webhook_events (event_id, event_type, session_id, user_id, collection_id, processed_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (event_id) DO UPDATE SET processed_at = EXCLUDED.processed_at
		 WHERE webhook_events.status = $7
		   AND webhook_events.processed_at < now() - $8::interval`,
		event.EventID, event.EventType, event.SessionID, event.UserID, event.CollectionID,
		event.ProcessedAt, eventStatusProcessing, staleClaimInterval,
	)
	if err != nil {
		return ClaimInFlight, fmt.Errorf("failed to claim webhook event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return ClaimInFlight, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return ClaimAcquired, nil
	}

	var status string
	err = r.db.QueryRowContext(ctx,
		`SELECT status FROM webhook_events WHERE event_id = $1`,
		event.EventID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		// 競合相手がReleaseした直後。ACKせず再送で取り直させる
		return ClaimInFlight, nil
	}
	if err != nil {
		return ClaimInFlight, fmt.Errorf("failed to read webhook event status: %w", err)
	}
	if status == eventStatusCompleted {
		return ClaimCompleted, nil
	}
	return ClaimInFlight, nil
}

// MarkCompleted は解放適用の完了を記録する。
func (r *PostgresWebhookEventRepo) MarkCompleted(ctx context.Context, eventID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE webhook_events SET status = $2 WHERE event_id = $1`,
		eventID, eventStatusCompleted,
	)
	if err != nil {
		return fmt.Errorf("failed to mark webhook event completed: %w", err)
	}
	return nil
}

// Release は獲得した処理権を解放する。
// 完了済みの行は触らず、処理中の行のみ削除する。
// レコードが存在しない場合もエラーにしない（冪等）。
func (r *PostgresWebhookEventRepo) Release(ctx context.Context, eventID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM webhook_events WHERE event_id = $1 AND status = $2`,
		eventID, eventStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to release webhook event: %w", err)
	}
	return nil
}

// DeleteOlderThan は保持日数を超過した処理済みイベントを削除する。
func (r *PostgresWebhookEventRepo) DeleteOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	interval := fmt.Sprintf("%d days", retentionDays)
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM webhook_events WHERE processed_at < now() - $1::interval`,
		interval,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old webhook events: %w", err)
	}
	return result.RowsAffected()
}

// compile-time interface check
var _ WebhookEventRepository = (*PostgresWebhookEventRepo)(nil)
