package types

import (
	"errors"
	"time"
)

// NodeState is the harness's last known state of a cluster node.
//
// Node state is owned exclusively by the scenario engine: every transition
// is the direct result of an explicit controller action, never an inference
// made by another component.
type NodeState uint8

const (
	// NodeUp indicates the node has been started and not stopped since.
	NodeUp NodeState = iota
	// NodeDown indicates the node was stopped gracefully.
	NodeDown
	// NodeKilled indicates the node was stopped with an unclean kill.
	NodeKilled
	// NodeResetting indicates the node's data directory is being wiped
	// before its next start.
	NodeResetting
)

// String returns the string representation of the NodeState.
func (s NodeState) String() string {
	switch s {
	case NodeUp:
		return "UP"
	case NodeDown:
		return "DOWN"
	case NodeKilled:
		return "KILLED"
	case NodeResetting:
		return "RESETTING"
	default:
		return "UNKNOWN"
	}
}

// Phase identifies where in the scenario state machine an event occurred.
type Phase uint8

// Scenario phases, in the order the engine enters them. The RUNNING loop
// cycles through Disturb, DeadTime, Restore, WaitingStable and Validate
// until the scenario length elapses.
const (
	PhaseInit Phase = iota
	PhaseStartingCluster
	PhaseWaitingStable
	PhaseWorkloadStarting
	PhaseRunning
	PhaseDisturb
	PhaseDeadTime
	PhaseRestore
	PhaseValidate
	PhaseStopping
	PhaseCompleted
	PhaseFailed
)

// String returns the string representation of the Phase.
func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "INIT"
	case PhaseStartingCluster:
		return "STARTING_CLUSTER"
	case PhaseWaitingStable:
		return "WAITING_STABLE"
	case PhaseWorkloadStarting:
		return "WORKLOAD_STARTING"
	case PhaseRunning:
		return "RUNNING"
	case PhaseDisturb:
		return "DISTURB"
	case PhaseDeadTime:
		return "DEAD_TIME"
	case PhaseRestore:
		return "RESTORE"
	case PhaseValidate:
		return "VALIDATE"
	case PhaseStopping:
		return "STOPPING"
	case PhaseCompleted:
		return "COMPLETED"
	case PhaseFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Classification is the severity bucket assigned to an observed error.
type Classification uint8

const (
	// ClassUnknown is an error no rule matched; it carries a best-effort
	// extracted type label for grouping.
	ClassUnknown Classification = iota
	// ClassKnown is a recognized, significant error. It is recorded and
	// counted but does not by itself fail a scenario.
	ClassKnown
	// ClassSuppressed is recognized noise: recorded for the transcript,
	// ignored for outcome purposes.
	ClassSuppressed
)

// String returns the string representation of the Classification.
func (c Classification) String() string {
	switch c {
	case ClassKnown:
		return "KNOWN"
	case ClassSuppressed:
		return "SUPPRESSED"
	default:
		return "UNKNOWN"
	}
}

// ErrorRecord is one classified error observed during a scenario run.
//
// Records are appended to a single ordered, append-only sink owned by the
// engine and are never mutated after creation.
type ErrorRecord struct {
	// Time is when the error was classified.
	Time time.Time

	// Phase is the engine phase at classification time (a snapshot, not
	// a handshake).
	Phase Phase

	// Source is the node name the error came from, or "workload".
	Source string

	// Line is the log line number (or request sequence number for
	// workload errors) the message started at.
	Line int

	// Message is the raw, possibly multi-line message text.
	Message string

	// Class is the assigned severity bucket.
	Class Classification

	// Label is the matched rule's label, or the extracted type name for
	// UNKNOWN errors.
	Label string
}

// HAStatusSnapshot is one node's self-reported view of the cluster,
// captured at a single poll. Immutable once taken.
type HAStatusSnapshot struct {
	// Node is the reporting node.
	Node string

	// Taken is the capture time.
	Taken time.Time

	// Online lists the member names the node reports as ONLINE,
	// including itself.
	Online []string

	// Healthy reports whether the node considers itself and all of its
	// databases fully online.
	Healthy bool
}

// ClusterView is the aggregate of the latest snapshot from every reachable
// node, recomputed on each poll cycle and used to decide stability.
type ClusterView struct {
	// Expected is the set of nodes that should respond.
	Expected []string

	// Reachable is the subset of polled nodes that answered.
	Reachable []string

	// Snapshots holds the latest snapshot per reachable node.
	Snapshots map[string]HAStatusSnapshot

	// Stable reports whether all reachable nodes agreed on the expected
	// live set with every member healthy.
	Stable bool

	// Taken is when the view was assembled.
	Taken time.Time
}

// StopMode selects how a disturbance takes a node down.
type StopMode uint8

const (
	// StopGraceful performs an orderly shutdown.
	StopGraceful StopMode = iota
	// StopKill delivers an unclean kill signal.
	StopKill
)

// String returns the string representation of the StopMode.
func (m StopMode) String() string {
	if m == StopKill {
		return "kill"
	}
	return "stop"
}

// ActionKind selects how the engine executes an Action.
type ActionKind uint8

const (
	// ActionRestart stops the node, holds it down for the dead time and
	// starts it again, all within one disturbance.
	ActionRestart ActionKind = iota

	// ActionStop stops the node and leaves it down. The cluster is
	// expected to restabilize without it.
	ActionStop

	// ActionStart brings a previously stopped node back.
	ActionStart
)

// String returns the string representation of the ActionKind.
func (k ActionKind) String() string {
	switch k {
	case ActionStop:
		return "stop"
	case ActionStart:
		return "start"
	default:
		return "restart"
	}
}

// Action is one disturbance decided by a policy.
type Action struct {
	// Node is the target node name.
	Node string

	// Kind selects restart, stop-and-leave-down or start.
	Kind ActionKind

	// Stop selects graceful stop or unclean kill. Ignored for
	// ActionStart.
	Stop StopMode

	// Reset wipes the node's data directory before it starts, forcing a
	// full re-sync from the cluster. Ignored for ActionStop.
	Reset bool

	// DeadTime is how long the node is held down before restart. Only
	// meaningful for ActionRestart.
	DeadTime time.Duration
}

// IndexKind selects which indexed property the workload exercises. The
// choice affects the write path inside the database, not the generator's
// own logic.
type IndexKind uint8

const (
	// IndexNotUnique exercises the NOTUNIQUE index (default).
	IndexNotUnique IndexKind = iota
	// IndexUnique exercises the UNIQUE index.
	IndexUnique
	// IndexFullText exercises the FULLTEXT index.
	IndexFullText
)

// String returns the string representation of the IndexKind.
func (k IndexKind) String() string {
	switch k {
	case IndexUnique:
		return "UNIQUE"
	case IndexFullText:
		return "FULL_TEXT"
	default:
		return "NOT_UNIQUE"
	}
}

// ParseIndexKind parses an IndexKind from its string form.
//
// Returns:
//   - IndexKind: The parsed kind
//   - error: Error if the string names no known kind
func ParseIndexKind(s string) (IndexKind, error) {
	switch s {
	case "UNIQUE":
		return IndexUnique, nil
	case "NOT_UNIQUE":
		return IndexNotUnique, nil
	case "FULL_TEXT":
		return IndexFullText, nil
	default:
		return IndexNotUnique, errors.New("stress: unknown workload type " + s)
	}
}

// WorkloadRecord is one logical database row under test.
type WorkloadRecord struct {
	// RID is the database-assigned record identity used for updates.
	RID string

	// ID is the harness-assigned logical id.
	ID int

	// Unique is the value of the UNIQUE-indexed property.
	Unique int64

	// NotUnique is the value of the NOTUNIQUE-indexed property.
	NotUnique int64

	// FullText is the value of the FULLTEXT-indexed property.
	FullText int64
}

// Value returns the record's value for the given index kind.
func (r WorkloadRecord) Value(kind IndexKind) int64 {
	switch kind {
	case IndexUnique:
		return r.Unique
	case IndexFullText:
		return r.FullText
	default:
		return r.NotUnique
	}
}

// Outcome is a scenario run's terminal result.
type Outcome uint8

const (
	// OutcomeCompleted means every phase was reached and no stabilization
	// deadline was exceeded.
	OutcomeCompleted Outcome = iota
	// OutcomeFailed means the run hit a fatal condition.
	OutcomeFailed
)

// String returns the string representation of the Outcome.
func (o Outcome) String() string {
	if o == OutcomeFailed {
		return "FAILED"
	}
	return "COMPLETED"
}

// ScenarioResult summarizes one scenario run. Produced once at scenario
// end; immutable.
type ScenarioResult struct {
	// RunID uniquely identifies the run.
	RunID string

	// Scenario is the scenario name, including the "-under-load" suffix
	// when the workload was enabled.
	Scenario string

	// Outcome is COMPLETED or FAILED.
	Outcome Outcome

	// FailurePhase is the phase a failed run died in. Meaningless when
	// Outcome is COMPLETED.
	FailurePhase Phase

	// Phases lists the phases reached, in order.
	Phases []Phase

	// ErrorCounts holds the number of recorded errors per classification.
	ErrorCounts map[Classification]int

	// Disturbances is the number of disturbance actions issued.
	Disturbances int

	// Seed is the run's random seed, logged for reproducibility.
	Seed int64

	// StartedAt and EndedAt bound the run.
	StartedAt time.Time
	EndedAt   time.Time
}

// Sentinel errors for common failure scenarios.
var (
	// ErrStabilizeTimeout indicates the cluster did not reach a stable HA
	// state before the stabilization deadline. This is fatal to the run.
	ErrStabilizeTimeout = errors.New("stress: cluster did not stabilize before deadline")

	// ErrNoReachableNodes indicates no node answered a single poll for the
	// entire stabilization window.
	ErrNoReachableNodes = errors.New("stress: no reachable nodes during stabilization")

	// ErrRecordNotFound indicates a workload record query returned no row.
	ErrRecordNotFound = errors.New("stress: workload record not found")

	// ErrWorkloadFailed indicates a background workload worker exhausted
	// its retry window and marked the workload failed.
	ErrWorkloadFailed = errors.New("stress: background workload reported failure")

	// ErrNoRunningNodes indicates an operation needed a running node but
	// every node is currently down.
	ErrNoRunningNodes = errors.New("stress: no running nodes available")
)

// NodeError wraps an error from a controller or client call against a
// specific node.
type NodeError struct {
	// Node is the node the call targeted.
	Node string

	// Operation describes what call failed.
	Operation string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return "stress: node " + e.Node + " " + e.Operation + " failed: " + e.Cause.Error()
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *NodeError) Unwrap() error {
	return e.Cause
}
