// Package types provides shared types and error definitions for the stress harness.
//
// This is a leaf package with zero orientdb-stress imports to prevent import
// cycles. All packages in the harness can safely import this package.
//
// # Types
//
// Phase tracks where in the scenario state machine the engine is:
//
//	INIT → STARTING_CLUSTER → WAITING_STABLE → [WORKLOAD_STARTING] →
//	RUNNING{DISTURB → DEAD_TIME → RESTORE → WAITING_STABLE → VALIDATE}* →
//	STOPPING → COMPLETED | FAILED
//
// Classification buckets observed errors:
//
//	const (
//	    ClassUnknown    Classification = iota // no rule matched
//	    ClassKnown                            // recognized, significant
//	    ClassSuppressed                       // recognized noise
//	)
//
// # Errors
//
// Sentinel errors are provided for common failure scenarios:
//
//   - ErrStabilizeTimeout: Cluster did not stabilize before the deadline
//   - ErrNoReachableNodes: No node answered during stabilization
//   - ErrRecordNotFound: Workload record query returned no row
//   - ErrWorkloadFailed: Background workload exhausted its retry window
//   - ErrNoRunningNodes: An operation needed a running node but none is up
//
// # ErrorRecord
//
// ErrorRecord is the unit of the scenario transcript, carrying the raw
// message, its source, the phase snapshot and the assigned classification:
//
//	type ErrorRecord struct {
//	    Time    time.Time
//	    Phase   Phase
//	    Source  string
//	    Line    int
//	    Message string
//	    Class   Classification
//	    Label   string
//	}
package types
