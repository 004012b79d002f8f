package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsCollector struct {
	registry           *prometheus.Registry
	signalsEvaluated   *prometheus.CounterVec
	signalsRejected    prometheus.Counter
	actionsEmitted     *prometheus.CounterVec
	ruleFailures       *prometheus.CounterVec
	dispatchFailures   *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	catalogRules       prometheus.Gauge
	logger             *slog.Logger
}

func NewMetricsCollector(logger *slog.Logger) *MetricsCollector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()

	return &MetricsCollector{
		registry: registry,
		signalsEvaluated: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "governance_signals_evaluated_total",
			Help: "Total number of evaluated signals",
		}, []string{"signal_type"}),
		signalsRejected: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "governance_signals_rejected_total",
			Help: "Total number of signal submissions rejected before evaluation",
		}),
		actionsEmitted: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "governance_actions_emitted_total",
			Help: "Total number of action directives produced by the rule engine",
		}, []string{"action"}),
		ruleFailures: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "governance_rule_failures_total",
			Help: "Total number of rule evaluations skipped because the rule failed",
		}, []string{"rule_id"}),
		dispatchFailures: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "governance_dispatch_failures_total",
			Help: "Total number of directives that could not be delivered",
		}, []string{"action"}),
		evaluationDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "governance_evaluation_duration_seconds",
			Help:    "Time taken to evaluate a signal against the catalog",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		catalogRules: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "governance_catalog_rules",
			Help: "Number of rules in the active catalog",
		}),
		logger: logger,
	}
}

func (m *MetricsCollector) RecordEvaluation(signalType string, duration time.Duration, actions []string, failedRules []string) {
	m.signalsEvaluated.WithLabelValues(signalType).Inc()
	m.evaluationDuration.Observe(duration.Seconds())
	for _, a := range actions {
		m.actionsEmitted.WithLabelValues(a).Inc()
	}
	for _, id := range failedRules {
		m.ruleFailures.WithLabelValues(id).Inc()
	}
}

func (m *MetricsCollector) RecordRejected() {
	m.signalsRejected.Inc()
}

func (m *MetricsCollector) RecordDispatchFailure(action string) {
	m.dispatchFailures.WithLabelValues(action).Inc()
}

func (m *MetricsCollector) SetCatalogSize(n int) {
	m.catalogRules.Set(float64(n))
}

func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

func (m *MetricsCollector) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *MetricsCollector) StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.GetHandler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		m.logger.Info("Starting metrics server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}

func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	m.logger.Info("Metrics collector shutdown complete")
	return nil
}
