package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"secureflow/internal/domain"
)

const namespace = "secureflow"

// MetricsCollector owns a private registry so tests can build as many as they like.
type MetricsCollector struct {
	registry          *prometheus.Registry
	assessments       *prometheus.CounterVec
	ruleTriggers      *prometheus.CounterVec
	riskScore         prometheus.Histogram
	assessmentLatency prometheus.Histogram
	sends             *prometheus.CounterVec
	blockedAmount     prometheus.Counter
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	logger            *slog.Logger
}

func NewMetricsCollector(logger *slog.Logger) *MetricsCollector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &MetricsCollector{
		registry: registry,
		assessments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_assessments_total",
			Help:      "Risk assessments by resulting level",
		}, []string{"level"}),
		ruleTriggers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_triggers_total",
			Help:      "Times each rule contributed a reason",
		}, []string{"rule"}),
		riskScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_score",
			Help:      "Distribution of final risk scores",
			Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		assessmentLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_assessment_duration_seconds",
			Help:      "Time taken to score a transaction",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		sends: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_recorded_total",
			Help:      "Recorded transfers by final status",
		}, []string{"status"}),
		blockedAmount: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocked_amount_total",
			Help:      "Sum of amounts held back by blocked transfers",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status class",
		}, []string{"method", "path", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		logger: logger,
	}
}

func (m *MetricsCollector) RecordAssessment(result domain.ScoreResult, duration time.Duration) {
	m.assessments.WithLabelValues(string(result.Level)).Inc()
	m.riskScore.Observe(float64(result.Score))
	m.assessmentLatency.Observe(duration.Seconds())
	for _, reason := range result.Reasons {
		m.ruleTriggers.WithLabelValues(string(reason.RuleID)).Inc()
	}
}

func (m *MetricsCollector) RecordSend(status domain.TransactionStatus, amount float64) {
	m.sends.WithLabelValues(string(status)).Inc()
	if status == domain.StatusBlocked {
		m.blockedAmount.Add(amount)
	}
}

// Middleware records request counts and latency per route pattern.
func (m *MetricsCollector) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(c.Request.Method, path, statusBucket(c.Writer.Status())).Inc()
	}
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
		ReadHeaderTimeout: 5 * time.Second,
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

func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
