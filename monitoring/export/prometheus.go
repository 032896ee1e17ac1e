package export

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rcc-sub005/llmrouter/monitoring"
)

// Collector adapts a RollingSnapshot/HealthReport pair into a Prometheus
// collector, so the router's metrics can share a /metrics endpoint with
// client_golang's default registry and exposition format.
type Collector struct {
	source func() (monitoring.RollingSnapshot, monitoring.HealthReport)

	totalErrors  *prometheus.Desc
	recoveryRate *prometheus.Desc
	healthScore  *prometheus.Desc
	providerScore *prometheus.Desc
	errorsByType *prometheus.Desc
}

// NewCollector builds a Collector that calls source on every scrape to
// obtain the current snapshot and health report.
func NewCollector(source func() (monitoring.RollingSnapshot, monitoring.HealthReport)) *Collector {
	return &Collector{
		source:        source,
		totalErrors:   prometheus.NewDesc("llmrouter_errors_total", "Total error events in the retained window", nil, nil),
		recoveryRate:  prometheus.NewDesc("llmrouter_recovery_rate", "Fraction of errors recovered", nil, nil),
		healthScore:   prometheus.NewDesc("llmrouter_health_score", "Overall health score 0-100", nil, nil),
		providerScore: prometheus.NewDesc("llmrouter_provider_health_score", "Per-target health score 0-100", []string{"target"}, nil),
		errorsByType:  prometheus.NewDesc("llmrouter_errors_by_type", "Error count by type in the retained window", []string{"error_type"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalErrors
	ch <- c.recoveryRate
	ch <- c.healthScore
	ch <- c.providerScore
	ch <- c.errorsByType
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap, health := c.source()

	ch <- prometheus.MustNewConstMetric(c.totalErrors, prometheus.CounterValue, float64(snap.TotalErrors))
	ch <- prometheus.MustNewConstMetric(c.recoveryRate, prometheus.GaugeValue, snap.RecoveryRate)
	ch <- prometheus.MustNewConstMetric(c.healthScore, prometheus.GaugeValue, health.OverallScore)

	for target, score := range health.ProviderScores {
		ch <- prometheus.MustNewConstMetric(c.providerScore, prometheus.GaugeValue, score, target)
	}
	for errType, count := range snap.ErrorsByType {
		ch <- prometheus.MustNewConstMetric(c.errorsByType, prometheus.CounterValue, float64(count), errType)
	}
}
