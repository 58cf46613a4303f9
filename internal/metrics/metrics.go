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
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordEventCreated()
	RecordEventUpdated()
	RecordEventDeleted()
	RecordRSVPToggle(attending bool)
	RecordStorageUploadLatency(duration time.Duration)
	RecordStorageDeleteFailure()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	eventsCreated        prometheus.Counter
	eventsUpdated        prometheus.Counter
	eventsDeleted        prometheus.Counter
	rsvpToggles          *prometheus.CounterVec
	storageUploadLatency prometheus.Histogram
	storageDeleteFail    prometheus.Counter
	httpStatus           *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		eventsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventboard_events_created_total",
			Help: "作成されたイベントの合計数",
		}),
		eventsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventboard_events_updated_total",
			Help: "更新されたイベントの合計数",
		}),
		eventsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventboard_events_deleted_total",
			Help: "削除されたイベントの合計数",
		}),
		rsvpToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventboard_rsvp_toggle_total",
			Help: "RSVPトグルの結果別の合計数",
		}, []string{"result"}),
		storageUploadLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eventboard_storage_upload_latency_seconds",
			Help:    "画像アップロードのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		storageDeleteFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventboard_storage_delete_fail_total",
			Help: "ベストエフォートの画像削除が失敗した合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventboard_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.eventsCreated,
		c.eventsUpdated,
		c.eventsDeleted,
		c.rsvpToggles,
		c.storageUploadLatency,
		c.storageDeleteFail,
		c.httpStatus,
	)

	return c
}

// RecordEventCreated はイベント作成を記録する。
func (c *Collector) RecordEventCreated() {
	c.eventsCreated.Inc()
}

// RecordEventUpdated はイベント更新を記録する。
func (c *Collector) RecordEventUpdated() {
	c.eventsUpdated.Inc()
}

// RecordEventDeleted はイベント削除を記録する。
func (c *Collector) RecordEventDeleted() {
	c.eventsDeleted.Inc()
}

// RecordRSVPToggle はRSVPトグルの結果を記録する。
func (c *Collector) RecordRSVPToggle(attending bool) {
	result := "un_attend"
	if attending {
		result = "attend"
	}
	c.rsvpToggles.WithLabelValues(result).Inc()
}

// RecordStorageUploadLatency は画像アップロードのレイテンシを記録する。
func (c *Collector) RecordStorageUploadLatency(duration time.Duration) {
	c.storageUploadLatency.Observe(duration.Seconds())
}

// RecordStorageDeleteFailure はベストエフォート画像削除の失敗を記録する。
func (c *Collector) RecordStorageDeleteFailure() {
	c.storageDeleteFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
