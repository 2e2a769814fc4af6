// Package prommetrics implements credits.Metrics using Prometheus.
package prommetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements credits.Metrics using Prometheus collectors.
type Metrics struct {
	generationsTotal     *prometheus.CounterVec
	generationCost       *prometheus.HistogramVec
	providerCallDuration *prometheus.HistogramVec
	providerCallErrors   prometheus.Counter
	creditsResetsTotal   *prometheus.CounterVec
	creditsResetAccounts *prometheus.CounterVec
	storageOpsDuration   *prometheus.HistogramVec
	storageOpsErrors     *prometheus.CounterVec
}

// NewMetrics creates a new Prometheus metrics implementation registered
// against reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		generationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total number of generation attempts.",
		}, []string{"type", "plan", "outcome"}),

		generationCost: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_cost_credits",
			Help:      "Distribution of credit costs charged per generation.",
			Buckets:   []float64{1, 3, 4, 5, 8, 10},
		}, []string{"type"}),

		providerCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Latency of content provider calls.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"success"}),

		providerCallErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_call_errors_total",
			Help:      "Total number of failed content provider calls.",
		}),

		creditsResetsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credits_resets_total",
			Help:      "Total number of credit reset operations.",
		}, []string{"trigger"}),

		creditsResetAccounts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credits_reset_accounts_total",
			Help:      "Total number of accounts whose credits were reset.",
		}, []string{"trigger"}),

		storageOpsDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_duration_seconds",
			Help:      "Latency of storage operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		storageOpsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operation_errors_total",
			Help:      "Total number of storage operation errors.",
		}, []string{"operation"}),
	}
}

// RecordGeneration implements credits.Metrics.
func (m *Metrics) RecordGeneration(materialType, plan string, cost int, outcome string) {
	m.generationsTotal.WithLabelValues(materialType, plan, outcome).Inc()
	if outcome == "success" {
		m.generationCost.WithLabelValues(materialType).Observe(float64(cost))
	}
}

// RecordProviderCall implements credits.Metrics.
func (m *Metrics) RecordProviderCall(duration time.Duration, err error) {
	m.providerCallDuration.WithLabelValues(strconv.FormatBool(err == nil)).Observe(duration.Seconds())
	if err != nil {
		m.providerCallErrors.Inc()
	}
}

// RecordCreditsReset implements credits.Metrics.
func (m *Metrics) RecordCreditsReset(trigger string, accounts int) {
	m.creditsResetsTotal.WithLabelValues(trigger).Inc()
	m.creditsResetAccounts.WithLabelValues(trigger).Add(float64(accounts))
}

// RecordStorageOperation implements credits.Metrics.
func (m *Metrics) RecordStorageOperation(operation string, duration time.Duration, err error) {
	m.storageOpsDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.storageOpsErrors.WithLabelValues(operation).Inc()
	}
}
