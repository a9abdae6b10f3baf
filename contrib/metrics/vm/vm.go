package vm

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"

	"github.com/indexity-io/orientdb-stress/types"
)

// Option configures a Collector.
type Option func(*Collector)

// WithPrefix sets the metric name prefix.
//
// Default: "stress"
//
// Parameters:
//   - prefix: The prefix to use for all metric names
//
// Returns:
//   - Option: A configuration option
func WithPrefix(prefix string) Option {
	return func(c *Collector) {
		c.prefix = prefix
	}
}

// WithMetricsSet sets the metrics set to use.
//
// If provided, the collector registers its metrics with this set instead
// of creating a new one. The caller is responsible for exposing the set
// (e.g., via metrics.WritePrometheus or a custom handler).
//
// Parameters:
//   - set: The metrics set to use
//
// Returns:
//   - Option: A configuration option
func WithMetricsSet(set *metrics.Set) Option {
	return func(c *Collector) {
		c.set = set
	}
}

// Collector implements types.MetricsCollector using VictoriaMetrics.
//
// Fixed metrics are pre-created at initialization; metrics with dynamic
// labels (operation kind, policy, scenario, error class) are created on
// first use. Thread-safe for concurrent use.
type Collector struct {
	set    *metrics.Set
	prefix string

	nodesUp atomic.Int64

	stabilizeDuration *metrics.Histogram
	stabilizeTimeouts *metrics.Counter
	validationPass    *metrics.Counter
	validationFailure *metrics.Counter
}

// Compile-time assertion that Collector implements types.MetricsCollector.
var _ types.MetricsCollector = (*Collector)(nil)

// New creates a new VictoriaMetrics-based metrics collector.
//
// When no set is provided, the collector creates its own metrics.Set and
// registers it globally.
//
// Parameters:
//   - opts: Configuration options (e.g., WithPrefix)
//
// Returns:
//   - *Collector: A new metrics collector ready for use
//
// Example:
//
//	collector := vm.New(vm.WithPrefix("stress"))
//	engine := scenario.NewEngine(controller, detector, nodes,
//	    scenario.WithEngineMetrics(collector),
//	)
func New(opts ...Option) *Collector {
	c := &Collector{
		prefix: "stress",
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.set == nil {
		c.set = metrics.NewSet()
		metrics.RegisterSet(c.set)
	}

	c.initMetrics()

	return c
}

func (c *Collector) initMetrics() {
	p := c.prefix

	c.set.NewGauge(fmt.Sprintf(`%s_nodes_up`, p), func() float64 {
		return float64(c.nodesUp.Load())
	})
	c.stabilizeDuration = c.set.NewHistogram(fmt.Sprintf(`%s_stabilize_duration_seconds`, p))
	c.stabilizeTimeouts = c.set.NewCounter(fmt.Sprintf(`%s_stabilize_timeouts_total`, p))
	c.validationPass = c.set.NewCounter(fmt.Sprintf(`%s_validation_pass_total`, p))
	c.validationFailure = c.set.NewCounter(fmt.Sprintf(`%s_validation_failure_total`, p))
}

// Set returns the underlying metrics set.
func (c *Collector) Set() *metrics.Set {
	return c.set
}

// Handler returns an HTTP handler that exposes metrics in Prometheus format.
//
// Example:
//
//	http.HandleFunc("/metrics", collector.Handler)
func (c *Collector) Handler(w http.ResponseWriter, _ *http.Request) {
	c.set.WritePrometheus(w)
}

// WritePrometheus writes all metrics in Prometheus format to the given writer.
//
// Parameters:
//   - w: The writer to write metrics to
func (c *Collector) WritePrometheus(w io.Writer) {
	c.set.WritePrometheus(w)
}

// ----------------------
// Workload Operations
// ----------------------

// IncWorkloadOp increments the workload operation counter for a kind.
func (c *Collector) IncWorkloadOp(kind string) {
	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_workload_ops_total{kind=%q}`, c.prefix, kind)).Inc()
}

// IncWorkloadError increments the workload operation error counter.
func (c *Collector) IncWorkloadError(kind string) {
	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_workload_errors_total{kind=%q}`, c.prefix, kind)).Inc()
}

// ObserveWorkloadOpDuration records a workload operation duration in seconds.
func (c *Collector) ObserveWorkloadOpDuration(kind string, seconds float64) {
	c.set.GetOrCreateHistogram(fmt.Sprintf(`%s_workload_op_duration_seconds{kind=%q}`, c.prefix, kind)).Update(seconds)
}

// ----------------------
// Disturbances
// ----------------------

// IncDisturbance increments the disturbance counter for a policy.
func (c *Collector) IncDisturbance(policy string) {
	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_disturbances_total{policy=%q}`, c.prefix, policy)).Inc()
}

// SetNodesUp sets the gauge of nodes the engine currently believes up.
func (c *Collector) SetNodesUp(n int) {
	c.nodesUp.Store(int64(n))
}

// ----------------------
// Stabilization
// ----------------------

// ObserveStabilizeDuration records a stabilization wait duration in seconds.
func (c *Collector) ObserveStabilizeDuration(seconds float64) {
	c.stabilizeDuration.Update(seconds)
}

// IncStabilizeTimeout increments the stabilization timeout counter.
func (c *Collector) IncStabilizeTimeout() {
	c.stabilizeTimeouts.Inc()
}

// ----------------------
// Errors and Validation
// ----------------------

// IncErrorRecord increments the classified error counter per class.
func (c *Collector) IncErrorRecord(class types.Classification) {
	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_errors_total{class=%q}`, c.prefix, class.String())).Inc()
}

// IncValidationPass increments the validator pass counter.
func (c *Collector) IncValidationPass() {
	c.validationPass.Inc()
}

// IncValidationFailure increments the validator failure counter.
func (c *Collector) IncValidationFailure() {
	c.validationFailure.Inc()
}

// ----------------------
// Scenarios
// ----------------------

// IncScenarioCompleted increments the completed scenario counter.
func (c *Collector) IncScenarioCompleted(scenario string) {
	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_scenarios_completed_total{scenario=%q}`, c.prefix, scenario)).Inc()
}

// IncScenarioFailed increments the failed scenario counter.
func (c *Collector) IncScenarioFailed(scenario string) {
	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_scenarios_failed_total{scenario=%q}`, c.prefix, scenario)).Inc()
}
