// Package webhook は決済ゲートウェイからのWebhook受信処理を提供する。
// 署名検証、イベントのフィルタリング、冪等な解放適用を行う。
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance はタイムスタンプ検証の許容ずれのデフォルト値。
const DefaultTolerance = 5 * time.Minute

// Verifier はWebhook署名の検証を行う。
// 署名ヘッダーは "t=<unix秒>,v1=<hex>" 形式で、v1は複数含まれ得る。
// 署名対象は "<t>.<ボディ>" のHMAC-SHA256。
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time // テストで差し替える
}

// NewVerifier はVerifierの新しいインスタンスを生成する。
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{
		secret:    []byte(secret),
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Verify は署名ヘッダーとボディを検証する。
// タイムスタンプが許容ずれを超える場合、またはどのv1署名も一致しない場合はエラーを返す。
func (v *Verifier) Verify(signatureHeader string, body []byte) error {
	timestamp, signatures, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return err
	}

	eventTime := time.Unix(timestamp, 0)
	drift := v.now().Sub(eventTime)
	if drift > v.tolerance || drift < -v.tolerance {
		return fmt.Errorf("タイムスタンプが許容範囲外です: %s", drift)
	}

	expected := v.computeSignature(timestamp, body)
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}

	return fmt.Errorf("署名が一致しません")
}

// computeSignature は "<t>.<ボディ>" のHMAC-SHA256を16進文字列で返す。
func (v *Verifier) computeSignature(timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// parseSignatureHeader は署名ヘッダーをタイムスタンプとv1署名のリストに分解する。
// 未知のスキーム（v0など）は無視する。
func parseSignatureHeader(header string) (int64, []string, error) {
	if header == "" {
		return 0, nil, fmt.Errorf("署名ヘッダーが空です")
	}

	var timestamp int64 = -1
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			t, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("タイムスタンプの解析に失敗しました: %w", err)
			}
			timestamp = t
		case "v1":
			signatures = append(signatures, value)
		}
	}

	if timestamp < 0 {
		return 0, nil, fmt.Errorf("署名ヘッダーにタイムスタンプがありません")
	}
	if len(signatures) == 0 {
		return 0, nil, fmt.Errorf("署名ヘッダーにv1署名がありません")
	}

	return timestamp, signatures, nil
}
