// Package metrics exposes Prometheus collectors for the web server.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"invoicedesk/internal/cache"
	"invoicedesk/internal/storage"
)

const namespace = "invoicedesk"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	apiCalls     *prometheus.CounterVec
	apiDuration  *prometheus.HistogramVec
	exports      *prometheus.CounterVec
	events       *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route pattern and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_calls_total",
			Help:      "Calls to the invoice API by operation and status (0 for transport errors).",
		}, []string{"op", "status"}),
		apiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_call_duration_seconds",
			Help:      "Invoice API latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Spreadsheet exports by kind and result.",
		}, []string{"kind", "result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_relayed_total",
			Help:      "Invoice change events moved from the outbox to the broker.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.apiCalls, m.apiDuration,
		m.exports, m.events,
	)
	return m
}

// Registry is exposed for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveAPICall implements api.Observer.
func (m *Metrics) ObserveAPICall(op string, status int, elapsed time.Duration) {
	m.apiCalls.WithLabelValues(op, strconv.Itoa(status)).Inc()
	m.apiDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveExport(kind string, err error) {
	if kind == "" {
		kind = "none"
	}
	m.exports.WithLabelValues(kind, result(err)).Inc()
}

func (m *Metrics) ObserveRelayed(n int) {
	if n > 0 {
		m.events.WithLabelValues("published").Add(float64(n))
	}
}

// RegisterCache exposes size and hit counters of a named cache.
func (m *Metrics) RegisterCache(name string, stats func() cache.Stats) {
	labels := prometheus.Labels{"cache": name}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cache_entries", Help: "Entries held by the cache.", ConstLabels: labels,
		}, func() float64 { return float64(stats().Size) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_hits_total", Help: "Cache hits.", ConstLabels: labels,
		}, func() float64 { return float64(stats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_misses_total", Help: "Cache misses.", ConstLabels: labels,
		}, func() float64 { return float64(stats().Misses) }),
	)
}

// RegisterOutbox exposes the outbox backlog per status.
func (m *Metrics) RegisterOutbox(stats func(context.Context) (storage.OutboxStats, error)) {
	read := func(pick func(storage.OutboxStats) int) func() float64 {
		return func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s, err := stats(ctx)
			if err != nil {
				return -1
			}
			return float64(pick(s))
		}
	}
	for status, pick := range map[string]func(storage.OutboxStats) int{
		"pending":   func(s storage.OutboxStats) int { return s.Pending },
		"published": func(s storage.OutboxStats) int { return s.Published },
		"failed":    func(s storage.OutboxStats) int { return s.Failed },
	} {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "outbox_events",
			Help:        "Events in the outbox by status.",
			ConstLabels: prometheus.Labels{"status": status},
		}, read(pick)))
	}
}

// Middleware records every request under the pattern the mux matched.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
