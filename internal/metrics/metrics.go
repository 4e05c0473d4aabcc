// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	OrderPagesFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_analytics_order_pages_fetched_total",
			Help: "Order pages read from the data source",
		},
		[]string{"source"},
	)

	OrdersFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_analytics_orders_fetched_total",
			Help: "Order rows read from the data source",
		},
		[]string{"source"},
	)

	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delivery_analytics_fetch_duration_seconds",
			Help:    "Time spent materializing every page of a fetch",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"source", "status"},
	)

	Analyses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_analytics_analyses_total",
			Help: "Analyses computed by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delivery_analytics_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status code",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "code"},
	)

	DigestsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_analytics_churn_digests_total",
			Help: "Churn digest e-mails by outcome",
		},
		[]string{"status"},
	)
)

// NewRegistry returns a registry with the process collectors and every
// application collector registered.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		OrderPagesFetched,
		OrdersFetched,
		FetchDuration,
		Analyses,
		HTTPRequestDuration,
		DigestsSent,
	)
	return registry
}

func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
