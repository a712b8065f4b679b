// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/starstream/internal/model"
)

// ClaimState はClaimの結果分類。
// 占有行は処理中（processing）と完了（completed）を区別して保持する。
// 区別がないと、適用中のイベントの再配信をACKした後に適用が失敗したとき、
// ゲートウェイは再送を止めているため解放が永久に適用されなくなる。
type ClaimState int

const (
	// ClaimAcquired は処理権を獲得した。呼び出し側が適用を進める。
	ClaimAcquired ClaimState = iota
	// ClaimInFlight は別の配信が同一イベントを適用中。ACKせず再送を待つ。
	ClaimInFlight
	// ClaimCompleted は適用完了済み。重複としてACKしてよい。
	ClaimCompleted
)

// WebhookEventRepository は処理済みWebhookイベントの永続化インターフェース。
// at-least-once配信に対するイベントID単位の重複排除を提供する。
type WebhookEventRepository interface {
	// Claim はイベントの処理権を獲得する。
	// 未処理のイベントであればprocessing状態のレコードを挿入してClaimAcquiredを返す。
	// 同一event_idのレコードが存在する場合は、その状態に応じて
	// ClaimInFlight（processing）またはClaimCompleted（completed）を返す。
	Claim(ctx context.Context, event *model.ProcessedEvent) (ClaimState, error)

	// MarkCompleted は解放適用の完了を記録する。
	// 以降の同一event_idのClaimはClaimCompletedを返す。
	MarkCompleted(ctx context.Context, eventID string) error

	// Release は獲得した処理権を解放する。processing状態の行のみ削除する。
	// 解放適用が失敗した場合に呼び出し、ゲートウェイの再送で再処理できるようにする。
	Release(ctx context.Context, eventID string) error

	// DeleteOlderThan は保持日数を超過した処理済みイベントを削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
