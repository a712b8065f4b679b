// ContentSanitizerService はフィード由来の作品タイトル・説明文をサニタイズし、
// XSSなどの注入からカタログAPIの利用者を保護する。
// bluemondayの許可リストベースのポリシーで、説明文に必要な
// 最小限の整形タグのみを通過させる。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はHTMLサニタイズ機能のインターフェースを定義する。
// カタログ取り込み時、フィード由来のテキストの保存前に使用される。
type ContentSanitizerService interface {
	// Sanitize はHTML断片をサニタイズして安全なHTMLを返す。
	// 許可タグ（p, br, strong, em）のみを通過させ、
	// script, iframe, style, img タグおよびon*イベント属性を除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// カタログの説明文は段落と強調だけの短いテキストを想定しているため、
// リンクや画像は許可しない。ポスターや動画のURLはフィードの
// 専用フィールドから取得する。
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "em")

	return &contentSanitizer{
		policy: p,
	}
}

// Sanitize はHTML断片をサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
