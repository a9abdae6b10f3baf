// Package metrics provides internal metrics utilities for the stress harness.
package metrics

import "github.com/indexity-io/orientdb-stress/types"

// NopMetrics is a no-op metrics collector that discards all metrics.
//
// This is used as the default metrics collector when no collector is
// configured, avoiding nil checks throughout the codebase.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements types.MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNopMetrics creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A collector that discards all metrics
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

// ----------------------
// Workload Operations
// ----------------------

// IncWorkloadOp discards the metric.
func (m *NopMetrics) IncWorkloadOp(_ string) {}

// IncWorkloadError discards the metric.
func (m *NopMetrics) IncWorkloadError(_ string) {}

// ObserveWorkloadOpDuration discards the metric.
func (m *NopMetrics) ObserveWorkloadOpDuration(_ string, _ float64) {}

// ----------------------
// Disturbances
// ----------------------

// IncDisturbance discards the metric.
func (m *NopMetrics) IncDisturbance(_ string) {}

// SetNodesUp discards the metric.
func (m *NopMetrics) SetNodesUp(_ int) {}

// ----------------------
// Stabilization
// ----------------------

// ObserveStabilizeDuration discards the metric.
func (m *NopMetrics) ObserveStabilizeDuration(_ float64) {}

// IncStabilizeTimeout discards the metric.
func (m *NopMetrics) IncStabilizeTimeout() {}

// ----------------------
// Errors and Validation
// ----------------------

// IncErrorRecord discards the metric.
func (m *NopMetrics) IncErrorRecord(_ types.Classification) {}

// IncValidationPass discards the metric.
func (m *NopMetrics) IncValidationPass() {}

// IncValidationFailure discards the metric.
func (m *NopMetrics) IncValidationFailure() {}

// ----------------------
// Scenarios
// ----------------------

// IncScenarioCompleted discards the metric.
func (m *NopMetrics) IncScenarioCompleted(_ string) {}

// IncScenarioFailed discards the metric.
func (m *NopMetrics) IncScenarioFailed(_ string) {}
