package types

// Logger defines the logging interface used throughout the harness.
//
// The method signatures are compatible with log/slog, so an slog.Logger can
// be adapted trivially. Implementations must be safe for concurrent use;
// workload workers and log tailers log from multiple goroutines.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, args ...any)

	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, args ...any)

	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, args ...any)

	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, args ...any)
}

// MetricsCollector defines methods for collecting harness metrics.
//
// Implementations should be thread-safe as methods may be called concurrently
// from workload workers, log tailers and the scenario engine.
type MetricsCollector interface {
	// ----------------------
	// Workload Operations
	// ----------------------

	// IncWorkloadOp increments the workload operation counter for the
	// given operation kind ("create", "read", "update").
	IncWorkloadOp(kind string)

	// IncWorkloadError increments the workload operation error counter.
	IncWorkloadError(kind string)

	// ObserveWorkloadOpDuration records a workload operation duration in seconds.
	ObserveWorkloadOpDuration(kind string, seconds float64)

	// ----------------------
	// Disturbances
	// ----------------------

	// IncDisturbance increments the disturbance counter for a policy.
	IncDisturbance(policy string)

	// SetNodesUp sets the gauge of nodes the engine currently believes up.
	SetNodesUp(n int)

	// ----------------------
	// Stabilization
	// ----------------------

	// ObserveStabilizeDuration records how long the cluster took to
	// stabilize, in seconds.
	ObserveStabilizeDuration(seconds float64)

	// IncStabilizeTimeout increments the stabilization timeout counter.
	IncStabilizeTimeout()

	// ----------------------
	// Errors and Validation
	// ----------------------

	// IncErrorRecord increments the classified error counter per class.
	IncErrorRecord(class Classification)

	// IncValidationPass increments the validator pass counter.
	IncValidationPass()

	// IncValidationFailure increments the validator failure counter.
	IncValidationFailure()

	// ----------------------
	// Scenarios
	// ----------------------

	// IncScenarioCompleted increments the completed scenario counter.
	IncScenarioCompleted(scenario string)

	// IncScenarioFailed increments the failed scenario counter.
	IncScenarioFailed(scenario string)
}
