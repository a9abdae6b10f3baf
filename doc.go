// Package stress provides a chaos harness for multi-node OrientDB clusters.
//
// The harness drives a cluster through a timeline of disturbances (node
// restarts, kills, data resets, rolling restarts) while generating
// rate-limited workload traffic, waiting for the cluster to stabilize after
// each disturbance and validating that committed writes survived.
//
// # Key Components
//
//   - ClusterController: starts, stops, kills and wipes individual nodes
//   - StabilityDetector: polls every node's HA view until they agree
//   - DisturbancePolicy: decides which node to disturb next and how
//   - WorkloadRunner: concurrent read/update traffic with lost-update checks
//   - Recorder: transcript sink for classified errors, phases and results
//
// The scenario engine in package scenario composes these capabilities into
// a phase state machine:
//
//	INIT → STARTING_CLUSTER → WAITING_STABLE → [WORKLOAD_STARTING] →
//	RUNNING{DISTURB → DEAD_TIME → RESTORE → WAITING_STABLE → VALIDATE}* →
//	STOPPING → COMPLETED | FAILED
//
// # Quick Start
//
//	controller := cluster.NewCompose("docker-compose.yml", "./data")
//	detector := stability.NewDetector(sources)
//	engine := scenario.NewEngine(controller, detector, nodes,
//	    scenario.WithEngineLogger(logger),
//	)
//
//	result, err := engine.Run(ctx, policy.NewRandomRestart(seed, 5*time.Second))
//
// See examples/basic for a full assembly including the workload, log
// tailers and recorders.
//
// # Failure Policy
//
// Classified errors are advisory: they are recorded and counted but do not
// fail a run unless a fail threshold is configured. A stabilization timeout
// or a hard controller/client failure fails the run at the phase it
// occurred in.
package stress
