package model

import "time"

// EventTypeCheckoutCompleted はこのシステムが処理する唯一のイベントタイプ。
// それ以外のイベントタイプは受信しても即座にACKして無視する。
const EventTypeCheckoutCompleted = "checkout.session.completed"

// ProcessedEvent は処理済みイベントの記録を表す。
// EventIDによる重複排除の第一防衛線として使用する。
type ProcessedEvent struct {
	EventID      string
	EventType    string
	SessionID    string
	UserID       string
	CollectionID string
	ProcessedAt  time.Time
}
