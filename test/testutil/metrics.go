package testutil

import (
	"sync"

	"github.com/indexity-io/orientdb-stress/types"
)

// TestMetricsCollector is a test implementation of types.MetricsCollector
// that tracks method calls for assertion in tests.
type TestMetricsCollector struct {
	mu sync.RWMutex

	// Workload operations
	WorkloadOps       map[string]int64
	WorkloadErrors    map[string]int64
	WorkloadDurations map[string][]float64

	// Disturbances
	Disturbances map[string]int64
	NodesUp      int

	// Stabilization
	StabilizeDurations []float64
	StabilizeTimeouts  int64

	// Errors and validation
	ErrorRecords       map[types.Classification]int64
	ValidationPasses   int64
	ValidationFailures int64

	// Scenarios
	ScenariosCompleted map[string]int64
	ScenariosFailed    map[string]int64
}

// Compile-time assertion that TestMetricsCollector implements types.MetricsCollector.
var _ types.MetricsCollector = (*TestMetricsCollector)(nil)

// NewTestMetricsCollector creates a new test metrics collector.
func NewTestMetricsCollector() *TestMetricsCollector {
	return &TestMetricsCollector{
		WorkloadOps:        make(map[string]int64),
		WorkloadErrors:     make(map[string]int64),
		WorkloadDurations:  make(map[string][]float64),
		Disturbances:       make(map[string]int64),
		ErrorRecords:       make(map[types.Classification]int64),
		ScenariosCompleted: make(map[string]int64),
		ScenariosFailed:    make(map[string]int64),
	}
}

// IncWorkloadOp increments the workload operation counter for a kind.
func (c *TestMetricsCollector) IncWorkloadOp(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.WorkloadOps[kind]++
}

// IncWorkloadError increments the workload operation error counter.
func (c *TestMetricsCollector) IncWorkloadError(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.WorkloadErrors[kind]++
}

// ObserveWorkloadOpDuration records a workload operation duration.
func (c *TestMetricsCollector) ObserveWorkloadOpDuration(kind string, seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.WorkloadDurations[kind] = append(c.WorkloadDurations[kind], seconds)
}

// IncDisturbance increments the disturbance counter for a policy.
func (c *TestMetricsCollector) IncDisturbance(policy string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Disturbances[policy]++
}

// SetNodesUp sets the nodes-up gauge.
func (c *TestMetricsCollector) SetNodesUp(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.NodesUp = n
}

// ObserveStabilizeDuration records a stabilization wait duration.
func (c *TestMetricsCollector) ObserveStabilizeDuration(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StabilizeDurations = append(c.StabilizeDurations, seconds)
}

// IncStabilizeTimeout increments the stabilization timeout counter.
func (c *TestMetricsCollector) IncStabilizeTimeout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StabilizeTimeouts++
}

// IncErrorRecord increments the classified error counter per class.
func (c *TestMetricsCollector) IncErrorRecord(class types.Classification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ErrorRecords[class]++
}

// IncValidationPass increments the validation pass counter.
func (c *TestMetricsCollector) IncValidationPass() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ValidationPasses++
}

// IncValidationFailure increments the validation failure counter.
func (c *TestMetricsCollector) IncValidationFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ValidationFailures++
}

// IncScenarioCompleted increments the completed scenario counter.
func (c *TestMetricsCollector) IncScenarioCompleted(scenario string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ScenariosCompleted[scenario]++
}

// IncScenarioFailed increments the failed scenario counter.
func (c *TestMetricsCollector) IncScenarioFailed(scenario string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ScenariosFailed[scenario]++
}

// TotalWorkloadOps returns the total operation count across kinds.
func (c *TestMetricsCollector) TotalWorkloadOps() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int64
	for _, n := range c.WorkloadOps {
		total += n
	}
	return total
}

// TotalErrorRecords returns the total classified error count across classes.
func (c *TestMetricsCollector) TotalErrorRecords() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int64
	for _, n := range c.ErrorRecords {
		total += n
	}
	return total
}
