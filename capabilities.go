package stress

import (
	"context"
	"time"

	"github.com/indexity-io/orientdb-stress/types"
)

// ClusterController manages the lifecycle of the cluster's node processes.
//
// Controller failures are hard failures: the harness cannot reason about
// cluster state if it cannot control the processes.
type ClusterController interface {
	// StartAll brings up every node in the cluster.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//
	// Returns:
	//   - error: nil on success
	StartAll(ctx context.Context) error

	// Start brings up one node.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - node: Node name
	//
	// Returns:
	//   - error: nil on success
	Start(ctx context.Context, node string) error

	// StopGraceful performs an orderly shutdown of one node.
	StopGraceful(ctx context.Context, node string) error

	// StopKill delivers an unclean kill to one node.
	StopKill(ctx context.Context, node string) error

	// ResetData wipes one node's data directory. The node must be down.
	// On next start it performs a full re-sync from the cluster.
	ResetData(ctx context.Context, node string) error

	// RemoveAll stops and removes every node, discarding containers.
	// Used between scenario repetitions for a clean slate.
	RemoveAll(ctx context.Context) error
}

// StabilityDetector decides when the cluster has converged after a
// disturbance.
type StabilityDetector interface {
	// WaitStable polls every expected node's HA view until all of them
	// agree that exactly the expected set is online and healthy, or the
	// stabilization deadline passes.
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//   - expected: Node names that must agree
	//
	// Returns:
	//   - types.ClusterView: The final aggregate view, stable or not
	//   - error: types.ErrStabilizeTimeout if the deadline passed
	WaitStable(ctx context.Context, expected []string) (types.ClusterView, error)
}

// DisturbancePolicy decides the disturbance timeline of a scenario.
//
// Implementations hold their own seeded random source so a run is
// reproducible from its logged seed. NextAction is called from a single
// goroutine.
type DisturbancePolicy interface {
	// Name returns the policy's scenario name, e.g. "random-restart".
	Name() string

	// Description returns a one-line human description for listings.
	Description() string

	// NextAction decides the next disturbance.
	//
	// Parameters:
	//   - nodes: Node names eligible for disturbance, in cluster order
	//   - elapsed: Time since the scenario's RUNNING phase began
	//
	// Returns:
	//   - types.Action: The disturbance to execute
	//   - bool: false if the policy has no further actions
	NextAction(nodes []string, elapsed time.Duration) (types.Action, bool)
}

// WorkloadRunner generates background traffic for the duration of a
// scenario.
type WorkloadRunner interface {
	// Start launches the workload workers.
	//
	// Parameters:
	//   - ctx: Context bounding the workload's lifetime
	//
	// Returns:
	//   - error: Error if test data setup failed
	Start(ctx context.Context) error

	// Stop terminates the workers and waits for them to exit.
	Stop()

	// Pause suspends traffic generation without stopping the workers.
	Pause()

	// Resume restarts traffic generation after Pause.
	Resume()

	// Failed reports whether any worker exhausted its retry window.
	Failed() bool
}

// Validator checks invariants between disturbances.
type Validator interface {
	// Validate performs one validation pass.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//
	// Returns:
	//   - error: Error describing the violated invariant, nil when valid
	Validate(ctx context.Context) error
}

// ErrorReporter accepts raw error messages from one source, classifies
// them and feeds the scenario's transcript.
//
// Implementations MUST be safe for concurrent use; log tailers and
// workload workers report from their own goroutines.
type ErrorReporter interface {
	// ReportError classifies and records one raw message.
	//
	// Parameters:
	//   - line: Log line number or request sequence number
	//   - message: Raw, possibly multi-line message text
	ReportError(line int, message string)

	// ErrorCount returns the number of errors recorded so far for a
	// classification.
	ErrorCount(class types.Classification) int
}

// Recorder is a sink for the scenario transcript. Implementations decide
// persistence (log output, SQLite archive, NATS stream).
//
// Record methods are called from the engine goroutine in event order and
// must not block the run; failures are handled internally.
type Recorder interface {
	// RecordPhase records a phase transition.
	RecordPhase(runID string, phase types.Phase, at time.Time)

	// RecordError records one classified error.
	RecordError(runID string, rec types.ErrorRecord)

	// RecordResult records a scenario's terminal result.
	RecordResult(res types.ScenarioResult)

	// Close flushes and releases the sink.
	Close() error
}
