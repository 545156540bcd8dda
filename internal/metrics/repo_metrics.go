package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RepositoryMetrics содержит метрики операций репозитория заказов.
type RepositoryMetrics struct {
	// Счётчики вызовов и ошибок по операциям
	opsTotal    *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec

	// Гистограмма времени выполнения операции
	opDuration *prometheus.HistogramVec
}

// NewRepositoryMetrics создаёт метрики в default-регистраторе Prometheus.
func NewRepositoryMetrics() *RepositoryMetrics {
	return newRepositoryMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newRepositoryMetricsWithRegisterer(registerer prometheus.Registerer) *RepositoryMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &RepositoryMetrics{
		opsTotal: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "northwind_repo_ops_total",
			Help: "Total number of repository operations executed",
		}, []string{"op"}),
		errorsTotal: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "northwind_repo_errors_total",
			Help: "Total number of repository operations failed",
		}, []string{"op"}),
		opDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "northwind_repo_op_duration_seconds",
			Help:    "Duration of repository operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"op"}),
	}
}

// ObserveOp фиксирует один вызов операции репозитория.
// Безопасен на nil-приёмнике: репозиторий может работать без метрик.
func (m *RepositoryMetrics) ObserveOp(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.opsTotal.WithLabelValues(op).Inc()
	if err != nil {
		m.errorsTotal.WithLabelValues(op).Inc()
	}
	m.opDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec); ok2 {
				return existing
			}
		}
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec); ok2 {
				return existing
			}
		}
	}
	return collector
}
