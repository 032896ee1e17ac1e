package export

import (
	"encoding/json"

	"github.com/rcc-sub005/llmrouter/monitoring"
)

// Report is the wire shape returned by the monitoring HTTP surface
// (spec.md §6's getHealth/getMetrics accessors).
type Report struct {
	Snapshot monitoring.RollingSnapshot `json:"snapshot"`
	Health   monitoring.HealthReport    `json:"health"`
	Alerts   []monitoring.Alert         `json:"alerts"`
}

// ToJSON marshals a Report with indentation suitable for an API response.
func ToJSON(snap monitoring.RollingSnapshot, health monitoring.HealthReport, alerts []monitoring.Alert) ([]byte, error) {
	return json.MarshalIndent(Report{Snapshot: snap, Health: health, Alerts: alerts}, "", "  ")
}
