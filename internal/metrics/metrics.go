package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the broker.
type Metrics struct {
	Submissions    *prometheus.CounterVec
	Transitions    *prometheus.CounterVec
	PriceFetches   *prometheus.CounterVec
	PriceLatency   *prometheus.HistogramVec
	ChatMessages   *prometheus.CounterVec
	LedgerMirror   *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
	HTTPLatency    *prometheus.HistogramVec
	HubSubscribers prometheus.Gauge
	Errors         *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Pending records created by users, by kind and outcome.",
			}, []string{"kind", "status"}),
			Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Admin decisions on pending records, by kind and outcome.",
			}, []string{"kind", "status"}),
			PriceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "price_fetches_total",
				Help:      "Price refreshes by source and status.",
			}, []string{"source", "status"}),
			PriceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "price_fetch_duration_seconds",
				Help:      "Latency distribution for upstream price requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"source"}),
			ChatMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_messages_total",
				Help:      "Chat messages posted, by sender.",
			}, []string{"sender"}),
			LedgerMirror: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_mirror_posts_total",
				Help:      "Ledger mirror postings by kind and status.",
			}, []string{"kind", "status"}),
			HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status code.",
			}, []string{"method", "route", "code"}),
			HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Latency distribution for HTTP requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method", "route"}),
			HubSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "chat_subscribers",
				Help:      "Connected chat push subscribers.",
			}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.Submissions,
			metricsInstance.Transitions,
			metricsInstance.PriceFetches,
			metricsInstance.PriceLatency,
			metricsInstance.ChatMessages,
			metricsInstance.LedgerMirror,
			metricsInstance.HTTPRequests,
			metricsInstance.HTTPLatency,
			metricsInstance.HubSubscribers,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}

// Outcome maps an error to the status label used by every counter.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
