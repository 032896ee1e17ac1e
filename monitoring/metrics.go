package monitoring

import "time"

// ProviderMetrics is the per-provider breakdown of spec.md §4.9.
type ProviderMetrics struct {
	ConsecutiveErrors int
	RetrySuccessRate  float64
	FallbackUsage     int
	TotalErrors       int
	RecoveredErrors   int
	AverageHandling   time.Duration
}

// ModuleMetrics is the per-module breakdown of spec.md §4.9.
type ModuleMetrics struct {
	TotalErrors     int
	RecoveredErrors int
	AverageHandling time.Duration
}

// RollingSnapshot is the computed metrics view over a window of events.
type RollingSnapshot struct {
	WindowStart time.Time
	WindowEnd   time.Time

	TotalErrors      int
	ErrorsByType     map[string]int
	ErrorsByCategory map[string]int
	ErrorsBySeverity map[Severity]int
	RecoveryRate     float64
	AverageHandling  time.Duration

	ByProvider map[string]ProviderMetrics
	ByModule   map[string]ModuleMetrics
}

// Aggregator computes a RollingSnapshot over an EventLog's retained
// window. It holds no independent state — every call re-derives the
// snapshot from EventLog.Snapshot(), matching spec.md §5's "aggregation
// for reports is performed by reading a consistent snapshot."
type Aggregator struct {
	log *EventLog
}

// NewAggregator builds an Aggregator reading from log.
func NewAggregator(log *EventLog) *Aggregator {
	return &Aggregator{log: log}
}

// Compute derives a RollingSnapshot over the last window duration.
func (a *Aggregator) Compute(window time.Duration) RollingSnapshot {
	events := a.log.Snapshot()
	cutoff := time.Now().Add(-window)

	snap := RollingSnapshot{
		WindowEnd:        time.Now(),
		ErrorsByType:     make(map[string]int),
		ErrorsByCategory: make(map[string]int),
		ErrorsBySeverity: make(map[Severity]int),
		ByProvider:       make(map[string]ProviderMetrics),
		ByModule:         make(map[string]ModuleMetrics),
	}

	var totalHandling time.Duration
	var recovered int
	providerTotals := make(map[string]*ProviderMetrics)
	moduleTotals := make(map[string]*ModuleMetrics)
	providerConsecutive := make(map[string]int)
	providerRetryAttempts := make(map[string]int)
	providerRetrySuccess := make(map[string]int)

	for _, ev := range events {
		if ev.Timestamp.Before(cutoff) {
			continue
		}
		if snap.WindowStart.IsZero() || ev.Timestamp.Before(snap.WindowStart) {
			snap.WindowStart = ev.Timestamp
		}
		snap.TotalErrors++
		snap.ErrorsByType[ev.ErrorType]++
		snap.ErrorsByCategory[ev.Category]++
		snap.ErrorsBySeverity[ev.Severity]++
		totalHandling += ev.HandlingTime
		if ev.RecoverySuccessful {
			recovered++
		}

		if ev.Target != "" {
			pm, ok := providerTotals[ev.Target]
			if !ok {
				pm = &ProviderMetrics{}
				providerTotals[ev.Target] = pm
			}
			pm.TotalErrors++
			pm.AverageHandling += ev.HandlingTime
			if ev.RecoverySuccessful {
				pm.RecoveredErrors++
			}
			if ev.StrategyUsed == "retry" {
				providerRetryAttempts[ev.Target]++
				if ev.RecoverySuccessful {
					providerRetrySuccess[ev.Target]++
				}
			}
			if ev.StrategyUsed == "fallback" {
				pm.FallbackUsage++
			}
			providerConsecutive[ev.Target]++
		}

		if ev.ModuleID != "" {
			mm, ok := moduleTotals[ev.ModuleID]
			if !ok {
				mm = &ModuleMetrics{}
				moduleTotals[ev.ModuleID] = mm
			}
			mm.TotalErrors++
			mm.AverageHandling += ev.HandlingTime
			if ev.RecoverySuccessful {
				mm.RecoveredErrors++
			}
		}
	}

	if snap.TotalErrors > 0 {
		snap.RecoveryRate = float64(recovered) / float64(snap.TotalErrors)
		snap.AverageHandling = totalHandling / time.Duration(snap.TotalErrors)
	}

	for target, pm := range providerTotals {
		if pm.TotalErrors > 0 {
			pm.AverageHandling /= time.Duration(pm.TotalErrors)
		}
		pm.ConsecutiveErrors = providerConsecutive[target]
		if attempts := providerRetryAttempts[target]; attempts > 0 {
			pm.RetrySuccessRate = float64(providerRetrySuccess[target]) / float64(attempts)
		}
		snap.ByProvider[target] = *pm
	}
	for module, mm := range moduleTotals {
		if mm.TotalErrors > 0 {
			mm.AverageHandling /= time.Duration(mm.TotalErrors)
		}
		snap.ByModule[module] = *mm
	}

	return snap
}
