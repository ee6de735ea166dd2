// Package metrics exposes Prometheus collectors for the HTTP surface and
// the ledger.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	txAdded       *prometheus.CounterVec
	txDeleted     prometheus.Counter
	assistantHops prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		txAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "transactions_added_total",
			Help:      "Materialized transaction rows written, split by whether they came from a recurring template.",
		}, []string{"recurring"}),
		txDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "transactions_deleted_total",
			Help:      "Transaction rows deleted individually or in bulk.",
		}),
		assistantHops: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "assistant_tool_hops",
			Help:      "Tool-execution hops per assistant query.",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8},
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.txAdded,
		m.txDeleted,
		m.assistantHops,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency keyed by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// The recorders below are no-ops on a nil *Metrics, which is what the
// services get when METRICS_ENABLED is false.

func (m *Metrics) TransactionsAdded(n int, recurring bool) {
	if m == nil {
		return
	}
	m.txAdded.WithLabelValues(strconv.FormatBool(recurring)).Add(float64(n))
}

func (m *Metrics) TransactionsDeleted(n int) {
	if m == nil {
		return
	}
	m.txDeleted.Add(float64(n))
}

func (m *Metrics) AssistantHops(n int) {
	if m == nil {
		return
	}
	m.assistantHops.Observe(float64(n))
}
