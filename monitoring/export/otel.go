// Package export serializes monitoring snapshots for outbound consumption:
// OpenTelemetry instruments, JSON for API responses, and Prometheus text
// exposition — grounded on the teacher's llm/observability/metrics.go
// instrument layout, reworked from per-LLM-call spans to router-level
// rolling-window gauges.
package export

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rcc-sub005/llmrouter/monitoring"
)

const instrumentationName = "github.com/rcc-sub005/llmrouter/monitoring"

// OTelInstruments mirrors the rolling snapshot and health report onto
// OpenTelemetry counters and gauges so an external collector can scrape
// them alongside whatever exporter pipeline the deployment already runs.
type OTelInstruments struct {
	meter metric.Meter

	errorsTotal     metric.Int64Counter
	recoveryRate    metric.Float64ObservableGauge
	healthScore     metric.Float64ObservableGauge
	providerHealth  metric.Float64ObservableGauge

	latest       monitoring.RollingSnapshot
	latestHealth monitoring.HealthReport
}

// NewOTelInstruments registers the router's metric instruments against the
// global otel provider.
func NewOTelInstruments() (*OTelInstruments, error) {
	meter := otel.Meter(instrumentationName)
	o := &OTelInstruments{meter: meter}

	var err error
	o.errorsTotal, err = meter.Int64Counter("llmrouter.errors.total",
		metric.WithDescription("Total error events recorded"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, err
	}

	o.recoveryRate, err = meter.Float64ObservableGauge("llmrouter.recovery_rate",
		metric.WithDescription("Fraction of recorded errors that were recovered"),
		metric.WithFloat64Callback(func(_ context.Context, obs metric.Float64Observer) error {
			obs.Observe(o.latest.RecoveryRate)
			return nil
		}))
	if err != nil {
		return nil, err
	}

	o.healthScore, err = meter.Float64ObservableGauge("llmrouter.health_score",
		metric.WithDescription("Overall health score, 0-100"),
		metric.WithFloat64Callback(func(_ context.Context, obs metric.Float64Observer) error {
			obs.Observe(o.latestHealth.OverallScore)
			return nil
		}))
	if err != nil {
		return nil, err
	}

	o.providerHealth, err = meter.Float64ObservableGauge("llmrouter.provider_health_score",
		metric.WithDescription("Per-target health score, 0-100"),
		metric.WithFloat64Callback(func(_ context.Context, obs metric.Float64Observer) error {
			for target, score := range o.latestHealth.ProviderScores {
				obs.Observe(score, metric.WithAttributes(attribute.String("target", target)))
			}
			return nil
		}))
	if err != nil {
		return nil, err
	}

	return o, nil
}

// Observe records a new snapshot/report pair. The counter is incremented
// by the delta in TotalErrors since the last observation; the gauges are
// served from the stored snapshot on the next collector scrape.
func (o *OTelInstruments) Observe(ctx context.Context, snap monitoring.RollingSnapshot, report monitoring.HealthReport) {
	delta := snap.TotalErrors - o.latest.TotalErrors
	if delta > 0 {
		o.errorsTotal.Add(ctx, int64(delta))
	}
	o.latest = snap
	o.latestHealth = report
}
