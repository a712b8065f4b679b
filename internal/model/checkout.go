package model

// CheckoutSession は決済ゲートウェイが発行したチェックアウトセッションを表す。
// セッションは単一目的であり、1つのコレクションを1人のユーザー（セッション作成時に
// 束縛される）に付与するためだけに使用される。
// ステータスはゲートウェイ側で管理され、ローカルには複製しない。
type CheckoutSession struct {
	SessionID    string // ゲートウェイが発行する不透明なトークン
	URL          string // 購入者をリダイレクトするチェックアウトURL
	UserID       string // 購入者。セッション作成時に束縛される
	CollectionID string // 決済完了時に付与するコレクション
	AmountCents  int64  // 購入者が選択した金額（セント単位、正の整数）
}
