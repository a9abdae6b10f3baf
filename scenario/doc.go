// Package scenario implements the run engine that drives a disturbance
// scenario end to end.
//
// A run moves through a fixed phase sequence:
//
//	INIT -> STARTING_CLUSTER -> WAITING_STABLE -> WORKLOAD_STARTING -> RUNNING
//
// and inside RUNNING cycles through
//
//	DISTURB -> DEAD_TIME -> RESTORE -> WAITING_STABLE -> VALIDATE
//
// until the scenario length elapses, then STOPPING and COMPLETED or
// FAILED. The disturbance timeline comes from a DisturbancePolicy; the
// engine owns everything around it: cluster lifecycle, stabilization,
// workload pause and resume, validation, error accounting and the
// transcript.
//
// Error accounting flows through Sink. Each error source (one per node
// log, one for workload traffic) gets its own Sink via AttachReporter;
// log tailers and workload workers report raw messages, the sink
// classifies them and forwards classified records to the recorder.
package scenario
