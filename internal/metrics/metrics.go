// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 上流APIクライアントと未読数ポーラーから利用する。
type MetricsCollector interface {
	RecordUpstreamStatus(statusCode int)
	RecordUpstreamLatency(duration time.Duration)
	RecordUpstreamFailure()
	RecordPollCycle()
	RecordPollError()
	RecordSessionsPruned(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamStatus  *prometheus.CounterVec
	upstreamLatency prometheus.Histogram
	upstreamFail    prometheus.Counter
	pollCycles      prometheus.Counter
	pollErrors      prometheus.Counter
	sessionsPruned  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drainman_upstream_status_total",
			Help: "上流APIのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "drainman_upstream_latency_seconds",
			Help:    "上流APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		upstreamFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drainman_upstream_failure_total",
			Help: "上流APIへのトランスポート失敗の合計数",
		}),
		pollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drainman_poll_cycles_total",
			Help: "未読数ポーリングサイクルの合計数",
		}),
		pollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drainman_poll_errors_total",
			Help: "未読数ポーリング中のエラーの合計数",
		}),
		sessionsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drainman_sessions_pruned_total",
			Help: "削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.upstreamStatus,
		c.upstreamLatency,
		c.upstreamFail,
		c.pollCycles,
		c.pollErrors,
		c.sessionsPruned,
	)

	return c
}

// RecordUpstreamStatus は上流APIのHTTPステータスコードを記録する。
func (c *Collector) RecordUpstreamStatus(statusCode int) {
	c.upstreamStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamLatency は上流APIリクエストのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(duration time.Duration) {
	c.upstreamLatency.Observe(duration.Seconds())
}

// RecordUpstreamFailure は上流APIへのトランスポート失敗を記録する。
func (c *Collector) RecordUpstreamFailure() {
	c.upstreamFail.Inc()
}

// RecordPollCycle はポーリングサイクルの実行を記録する。
func (c *Collector) RecordPollCycle() {
	c.pollCycles.Inc()
}

// RecordPollError はポーリング中のエラーを記録する。
func (c *Collector) RecordPollError() {
	c.pollErrors.Inc()
}

// RecordSessionsPruned は削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsPruned(count int64) {
	c.sessionsPruned.Add(float64(count))
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
