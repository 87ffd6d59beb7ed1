// Package metrics exposes Prometheus instrumentation for chat exchanges,
// job transitions, and the local API.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Nit2312/NyaySarthi/internal/chat"
	"github.com/Nit2312/NyaySarthi/internal/jobs"
)

const namespace = "nyay"

var _ chat.Observer = (*Metrics)(nil)

// Metrics owns a private registry so tests and multiple servers do not
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	exchanges        *prometheus.CounterVec
	exchangeDuration *prometheus.HistogramVec
	transitions      *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates a Metrics with process and Go runtime collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		exchanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "exchanges_total",
			Help:      "Finished chat exchanges by outcome (ok, error, abandoned).",
		}, []string{"outcome"}),
		exchangeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "exchange_duration_seconds",
			Help:      "Time from send to resolution of a chat exchange.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"outcome"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "transitions_total",
			Help:      "Upload job transitions by target status.",
		}, []string{"to"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Local API requests by route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Local API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ObserveExchange implements chat.Observer.
func (m *Metrics) ObserveExchange(outcome string, d time.Duration) {
	m.exchanges.WithLabelValues(outcome).Inc()
	m.exchangeDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RegisterPipeline exposes the pipeline's derived statistics as gauges. The
// values are computed at scrape time.
func (m *Metrics) RegisterPipeline(p *jobs.Pipeline) {
	f := promauto.With(m.registry)
	gauge := func(name, help string, v func(jobs.Stats) float64) {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      name,
			Help:      help,
		}, func() float64 { return v(p.Stats()) })
	}
	gauge("total", "Jobs currently tracked.", func(s jobs.Stats) float64 { return float64(s.Total) })
	gauge("completed", "Tracked jobs in Completed.", func(s jobs.Stats) float64 { return float64(s.Completed) })
	gauge("failed", "Tracked jobs in Error.", func(s jobs.Stats) float64 { return float64(s.Failed) })
	gauge("in_flight", "Tracked jobs in Uploading or Processing.", func(s jobs.Stats) float64 { return float64(s.InFlight) })
	gauge("bytes_total", "Declared size of all tracked jobs.", func(s jobs.Stats) float64 { return float64(s.TotalBytes) })
	gauge("bytes_processed", "Size of tracked jobs in Completed.", func(s jobs.Stats) float64 { return float64(s.ProcessedBytes) })
}

// WatchPipeline subscribes to p and counts transitions until ctx ends. The
// subscription is in place when WatchPipeline returns; the returned channel
// closes once counting stops.
func (m *Metrics) WatchPipeline(ctx context.Context, p *jobs.Pipeline) <-chan struct{} {
	events, cancel := p.Subscribe(64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.To != "" {
					m.transitions.WithLabelValues(string(ev.To)).Inc()
				}
			}
		}
	}()
	return done
}

// Middleware records request counts and latency labelled by chi route
// pattern, keeping label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
