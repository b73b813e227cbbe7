// Package metrics holds the Prometheus collectors for outgoing API requests
// and the outbox sync worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a set of collectors bound to one registry.
type Metrics struct {
	registry *prometheus.Registry

	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	sessionExpired  prometheus.Counter
	syncProcessed   *prometheus.CounterVec
	outboxPending   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "passbook",
				Name:      "api_requests_total",
				Help:      "Backend API requests, partitioned by status code, method and endpoint.",
			},
			[]string{"code", "method", "endpoint"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "passbook",
				Name:      "api_request_duration_seconds",
				Help:      "Backend API request latencies in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		sessionExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "passbook",
			Name:      "session_expired_total",
			Help:      "Responses that invalidated the local session.",
		}),
		syncProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "passbook",
				Name:      "outbox_processed_total",
				Help:      "Outbox operations replayed against the backend, partitioned by kind and result.",
			},
			[]string{"kind", "result"},
		),
		outboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "passbook",
			Name:      "outbox_pending",
			Help:      "Outbox operations waiting to be replayed after the last sweep.",
		}),
	}

	m.registry.MustRegister(
		m.requestCount,
		m.requestDuration,
		m.sessionExpired,
		m.syncProcessed,
		m.outboxPending,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest records one backend round trip. status 0 means transport failure.
func (m *Metrics) ObserveRequest(method, endpoint string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.requestCount.WithLabelValues(code, method, endpoint).Inc()
	m.requestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

func (m *Metrics) SessionExpired() {
	if m == nil {
		return
	}
	m.sessionExpired.Inc()
}

// ObserveSync records the outcome of replaying one outbox operation.
func (m *Metrics) ObserveSync(kind string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.syncProcessed.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.outboxPending.Set(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
