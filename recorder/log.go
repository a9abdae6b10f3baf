// Package recorder provides scenario transcript sinks.
//
// A run produces three kinds of events: phase transitions, classified
// errors and a terminal result. LogRecorder renders them to the logger,
// SQLiteRecorder archives them for offline analysis, NATSRecorder
// publishes them to a JetStream stream for live consumers, and
// MultiRecorder fans out to any combination of the three.
package recorder

import (
	"fmt"
	"time"

	stress "github.com/indexity-io/orientdb-stress"
	"github.com/indexity-io/orientdb-stress/internal/logging"
	"github.com/indexity-io/orientdb-stress/types"
)

// LogRecorder renders transcript events to the logger.
type LogRecorder struct {
	logger types.Logger
}

// Compile-time assertion that LogRecorder implements stress.Recorder.
var _ stress.Recorder = (*LogRecorder)(nil)

// NewLogRecorder creates a LogRecorder.
//
// Parameters:
//   - logger: Logger instance, or nil for no-op
//
// Returns:
//   - *LogRecorder: The recorder
func NewLogRecorder(logger types.Logger) *LogRecorder {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &LogRecorder{logger: logger}
}

// RecordPhase logs a phase transition.
func (r *LogRecorder) RecordPhase(runID string, phase types.Phase, at time.Time) {
	r.logger.Info("phase transition", "run_id", runID, "phase", phase.String(), "at", at)
}

// RecordError logs one classified error. Unknown errors log at warning
// level since they are the signal the harness exists to surface.
func (r *LogRecorder) RecordError(runID string, rec types.ErrorRecord) {
	args := []any{
		"run_id", runID,
		"source", rec.Source,
		"line", rec.Line,
		"class", rec.Class.String(),
		"label", rec.Label,
		"phase", rec.Phase.String(),
	}
	switch rec.Class {
	case types.ClassUnknown:
		r.logger.Warn("unclassified error", append(args, "message", rec.Message)...)
	case types.ClassKnown:
		r.logger.Info("known error", args...)
	default:
		r.logger.Debug("suppressed error", args...)
	}
}

// RecordResult logs the run's terminal summary.
func (r *LogRecorder) RecordResult(res types.ScenarioResult) {
	summary := fmt.Sprintf("[U:%3d, K:%3d, S:%3d]",
		res.ErrorCounts[types.ClassUnknown],
		res.ErrorCounts[types.ClassKnown],
		res.ErrorCounts[types.ClassSuppressed])

	r.logger.Info("scenario result",
		"run_id", res.RunID,
		"scenario", res.Scenario,
		"outcome", res.Outcome.String(),
		"failure_phase", res.FailurePhase.String(),
		"disturbances", res.Disturbances,
		"errors", summary,
		"seed", res.Seed,
		"duration", res.EndedAt.Sub(res.StartedAt))
}

// Close implements stress.Recorder. It is a no-op.
func (r *LogRecorder) Close() error {
	return nil
}
