package server

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loykin/crawlsend/internal/supervisor"
)

// Metrics holds the crawl metrics on a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	runsTotal   *prometheus.CounterVec
	runDuration prometheus.Histogram
}

// NewMetrics creates the collectors. Observe should be registered as a
// supervisor run observer.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crawlsend_runs_total",
		Help: "Concluded crawler runs by final status.",
	}, []string{"status"})
	m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "crawlsend_run_duration_seconds",
		Help:    "Wall time of crawler runs that started.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	})
	m.registry.MustRegister(m.runsTotal, m.runDuration)
	return m
}

// Observe records a concluded run.
func (m *Metrics) Observe(res supervisor.RunResult) {
	m.runsTotal.WithLabelValues(string(res.Status)).Inc()
	if d := res.Duration(); d > 0 {
		m.runDuration.Observe(d.Seconds())
	}
}

// bindState exposes crawlsend_process_running for src.
func (m *Metrics) bindState(src StatusSource) {
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "crawlsend_process_running",
		Help: "1 while a crawler process occupies the slot.",
	}, func() float64 {
		if src.State() == supervisor.StateRunning {
			return 1
		}
		return 0
	})
	if err := m.registry.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			panic(err)
		}
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
