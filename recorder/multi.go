package recorder

import (
	"errors"
	"time"

	stress "github.com/indexity-io/orientdb-stress"
	"github.com/indexity-io/orientdb-stress/types"
)

// MultiRecorder fans transcript events out to several recorders.
type MultiRecorder struct {
	sinks []stress.Recorder
}

// Compile-time assertion that MultiRecorder implements stress.Recorder.
var _ stress.Recorder = (*MultiRecorder)(nil)

// NewMultiRecorder combines recorders into one. Nil entries are skipped.
//
// Parameters:
//   - sinks: Recorders to fan out to
//
// Returns:
//   - *MultiRecorder: The combined recorder
func NewMultiRecorder(sinks ...stress.Recorder) *MultiRecorder {
	m := &MultiRecorder{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// RecordPhase forwards a phase transition to every sink.
func (m *MultiRecorder) RecordPhase(runID string, phase types.Phase, at time.Time) {
	for _, s := range m.sinks {
		s.RecordPhase(runID, phase, at)
	}
}

// RecordError forwards one classified error to every sink.
func (m *MultiRecorder) RecordError(runID string, rec types.ErrorRecord) {
	for _, s := range m.sinks {
		s.RecordError(runID, rec)
	}
}

// RecordResult forwards the terminal result to every sink.
func (m *MultiRecorder) RecordResult(res types.ScenarioResult) {
	for _, s := range m.sinks {
		s.RecordResult(res)
	}
}

// Close closes every sink, returning the joined errors.
func (m *MultiRecorder) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
