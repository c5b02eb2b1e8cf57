package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	CheckoutTotal        *prometheus.CounterVec
	ShippingQuotesTotal  *prometheus.CounterVec
	WebhookEventsTotal   *prometheus.CounterVec
	OutboxPublishedTotal *prometheus.CounterVec
	OutboxDeadTotal      *prometheus.CounterVec

	once sync.Once
)

// InitMetrics 注册指标，重复调用只生效一次
func InitMetrics(prefix string) {
	once.Do(func() {
		if prefix == "" {
			prefix = "storefront"
		}

		HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"})

		HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		CheckoutTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_checkout_total",
			Help: "Checkout attempts by result",
		}, []string{"result"})

		ShippingQuotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_shipping_quotes_total",
			Help: "Shipping quotes produced by source",
		}, []string{"source"})

		WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_webhook_events_total",
			Help: "Payment webhook events by gateway and outcome",
		}, []string{"gateway", "outcome"})

		OutboxPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_outbox_published_total",
			Help: "Outbox events delivered by topic",
		}, []string{"topic"})

		OutboxDeadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_outbox_dead_total",
			Help: "Outbox events abandoned after max attempts by topic",
		}, []string{"topic"})
	})
}

func ensure() bool {
	return CheckoutTotal != nil
}

// ObserveHTTP 记录 HTTP 请求
func ObserveHTTP(method, path, status string, started time.Time) {
	if !ensure() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(started).Seconds())
}

// RecordCheckout 记录结账结果
func RecordCheckout(result string) {
	if ensure() {
		CheckoutTotal.WithLabelValues(result).Inc()
	}
}

// RecordShippingQuote 记录运费报价来源
func RecordShippingQuote(source string, n int) {
	if ensure() && n > 0 {
		ShippingQuotesTotal.WithLabelValues(source).Add(float64(n))
	}
}

// RecordWebhook 记录回调处理结果
func RecordWebhook(gateway, outcome string) {
	if ensure() {
		WebhookEventsTotal.WithLabelValues(gateway, outcome).Inc()
	}
}

// RecordOutboxPublished 记录事件投递
func RecordOutboxPublished(topic string) {
	if ensure() {
		OutboxPublishedTotal.WithLabelValues(topic).Inc()
	}
}

// RecordOutboxDead 记录放弃投递的事件
func RecordOutboxDead(topic string) {
	if ensure() {
		OutboxDeadTotal.WithLabelValues(topic).Inc()
	}
}

// Handler /metrics 处理器
func Handler() http.Handler {
	return promhttp.Handler()
}
