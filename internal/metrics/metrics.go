// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// Webhookサービスやチェックアウトサービスから利用する。
type MetricsCollector interface {
	RecordWebhookReceived(eventType string)
	RecordWebhookSignatureFailure()
	RecordWebhookApplied()
	RecordWebhookDuplicate()
	RecordWebhookNoOp()
	RecordCheckoutCreated()
	RecordCheckoutFailure(reason string)
	RecordProfileStoreLatency(operation string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	webhookReceived     *prometheus.CounterVec
	webhookSigFail      prometheus.Counter
	webhookApplied      prometheus.Counter
	webhookDuplicate    prometheus.Counter
	webhookNoOp         prometheus.Counter
	checkoutCreated     prometheus.Counter
	checkoutFail        *prometheus.CounterVec
	profileStoreLatency *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		webhookReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "starstream_webhook_received_total",
			Help: "受信したWebhookイベントの合計数（イベントタイプ別）",
		}, []string{"event_type"}),
		webhookSigFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "starstream_webhook_signature_fail_total",
			Help: "署名検証に失敗したWebhookの合計数",
		}),
		webhookApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "starstream_webhook_applied_total",
			Help: "エンタイトルメントを適用したWebhookの合計数",
		}),
		webhookDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "starstream_webhook_duplicate_total",
			Help: "重複排除でスキップしたWebhookの合計数",
		}),
		webhookNoOp: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "starstream_webhook_noop_total",
			Help: "メタデータ欠落や解放済みによるno-opの合計数",
		}),
		checkoutCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "starstream_checkout_created_total",
			Help: "作成したチェックアウトセッションの合計数",
		}),
		checkoutFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "starstream_checkout_fail_total",
			Help: "チェックアウト作成失敗の合計数（理由別）",
		}, []string{"reason"}),
		profileStoreLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "starstream_profile_store_latency_seconds",
			Help:    "プロファイルストアAPI呼び出しのレイテンシ（秒、操作別）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	reg.MustRegister(
		c.webhookReceived,
		c.webhookSigFail,
		c.webhookApplied,
		c.webhookDuplicate,
		c.webhookNoOp,
		c.checkoutCreated,
		c.checkoutFail,
		c.profileStoreLatency,
	)

	return c
}

// RecordWebhookReceived は受信イベントを記録する。
func (c *Collector) RecordWebhookReceived(eventType string) {
	c.webhookReceived.WithLabelValues(eventType).Inc()
}

// RecordWebhookSignatureFailure は署名検証失敗を記録する。
func (c *Collector) RecordWebhookSignatureFailure() {
	c.webhookSigFail.Inc()
}

// RecordWebhookApplied はエンタイトルメント適用を記録する。
func (c *Collector) RecordWebhookApplied() {
	c.webhookApplied.Inc()
}

// RecordWebhookDuplicate は重複スキップを記録する。
func (c *Collector) RecordWebhookDuplicate() {
	c.webhookDuplicate.Inc()
}

// RecordWebhookNoOp はno-op処理を記録する。
func (c *Collector) RecordWebhookNoOp() {
	c.webhookNoOp.Inc()
}

// RecordCheckoutCreated はチェックアウトセッション作成を記録する。
func (c *Collector) RecordCheckoutCreated() {
	c.checkoutCreated.Inc()
}

// RecordCheckoutFailure はチェックアウト作成失敗を記録する。
func (c *Collector) RecordCheckoutFailure(reason string) {
	c.checkoutFail.WithLabelValues(reason).Inc()
}

// RecordProfileStoreLatency はプロファイルストア呼び出しのレイテンシを記録する。
func (c *Collector) RecordProfileStoreLatency(operation string, duration time.Duration) {
	c.profileStoreLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
