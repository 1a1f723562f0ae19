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
// モデレーションAPIクライアントやサービス層から利用する。
type MetricsCollector interface {
	RecordModAPIRequest(operation string, statusCode int)
	RecordModAPILatency(operation string, duration time.Duration)
	RecordSubmission(outcome string)
	RecordLogin(outcome string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	modAPIRequests *prometheus.CounterVec
	modAPILatency  *prometheus.HistogramVec
	submissions    *prometheus.CounterVec
	logins         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		modAPIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "banappeal_modapi_requests_total",
			Help: "モデレーションAPI呼び出しの操作・ステータス別件数",
		}, []string{"operation", "status"}),
		modAPILatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "banappeal_modapi_latency_seconds",
			Help:    "モデレーションAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "banappeal_appeal_submissions_total",
			Help: "申し立て送信の結果別件数",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "banappeal_logins_total",
			Help: "Discordログインの結果別件数",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.modAPIRequests,
		c.modAPILatency,
		c.submissions,
		c.logins,
	)

	return c
}

// RecordModAPIRequest はモデレーションAPIの呼び出し結果を記録する。
// statusCodeが0の場合は通信エラーとして記録する。
func (c *Collector) RecordModAPIRequest(operation string, statusCode int) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	c.modAPIRequests.WithLabelValues(operation, status).Inc()
}

// RecordModAPILatency はモデレーションAPI呼び出しのレイテンシを記録する。
func (c *Collector) RecordModAPILatency(operation string, duration time.Duration) {
	c.modAPILatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSubmission は申し立て送信の結果を記録する。
func (c *Collector) RecordSubmission(outcome string) {
	c.submissions.WithLabelValues(outcome).Inc()
}

// RecordLogin はログイン結果を記録する。
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordModAPIRequest(string, int)           {}
func (Nop) RecordModAPILatency(string, time.Duration) {}
func (Nop) RecordSubmission(string)                   {}
func (Nop) RecordLogin(string)                        {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
