package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"termosifoni/internal/core"
)

type metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	mutations   *prometheus.CounterVec
	rateLimited prometheus.Counter
	suspicious  prometheus.Counter
}

func newMetrics(store ReadingsStore, activeClients func() int) *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &metrics{
		registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"route", "method", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "readings_mutations_total",
			Help: "Successful changes to the readings collection, by operation.",
		}, []string{"op"}),
		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "rate_limit_hits_total",
			Help: "Mutating requests rejected by the rate limiter.",
		}),
		suspicious: f.NewCounter(prometheus.CounterOpts{
			Name: "suspicious_requests_total",
			Help: "Requests matching a probe pattern.",
		}),
	}

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "readings_months",
		Help: "Number of months in the readings collection.",
	}, func() float64 {
		return float64(len(store.Snapshot(context.Background())))
	})
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "readings_consumption_total",
		Help: "Grand total of derived consumption across all months and meters.",
	}, func() float64 {
		return core.Derive(store.Snapshot(context.Background())).GrandTotal
	})
	if activeClients != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "rate_limit_active_clients",
			Help: "Clients currently tracked by the rate limiter.",
		}, func() float64 { return float64(activeClients()) })
	}
	return m
}

func (m *metrics) observeRequest(r *http.Request, status int, dur time.Duration) {
	route := routeLabel(r.URL.Path)
	m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route, r.Method).Observe(dur.Seconds())
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// routeLabel bounds label cardinality to the known routes.
func routeLabel(path string) string {
	switch path {
	case "/":
		return "index"
	case "/readings", "/readings/delete", "/readings/reset",
		"/import", "/export",
		"/ui/history", "/ui/chart",
		"/api/readings", "/api/chart",
		"/healthz", "/readyz", "/metrics":
		return path[1:]
	}
	if strings.HasPrefix(path, "/static/") {
		return "static"
	}
	return "other"
}
