package scenario

import (
	"sync"
	"time"

	stress "github.com/indexity-io/orientdb-stress"
	"github.com/indexity-io/orientdb-stress/classify"
	"github.com/indexity-io/orientdb-stress/types"
)

// Sink classifies raw error messages from one source and feeds the run
// transcript. Sinks are created through Engine.AttachReporter so every
// record carries the engine's current phase and run id.
type Sink struct {
	engine     *Engine
	source     string
	classifier *classify.Classifier

	mu     sync.Mutex
	counts map[types.Classification]int
}

// Compile-time assertion that Sink implements stress.ErrorReporter.
var _ stress.ErrorReporter = (*Sink)(nil)

// ReportError classifies one raw message and records it.
//
// Messages the classifier does not recognise as error-shaped are dropped
// silently; log tailers forward every complete message and most of them
// are routine output.
//
// Parameters:
//   - line: Log line number or request sequence number
//   - message: Raw, possibly multi-line message text
func (s *Sink) ReportError(line int, message string) {
	class, label, ok := s.classifier.Classify(message)
	if !ok {
		return
	}

	rec := types.ErrorRecord{
		Time:    time.Now(),
		Phase:   s.engine.Phase(),
		Source:  s.source,
		Line:    line,
		Message: message,
		Class:   class,
		Label:   label,
	}

	s.mu.Lock()
	s.counts[class]++
	count := s.counts[class]
	s.mu.Unlock()

	s.engine.metrics.IncErrorRecord(class)
	switch class {
	case types.ClassKnown:
		s.engine.logger.Warn("known error",
			"label", label, "count", count, "source", s.source, "line", line)
	case types.ClassSuppressed:
		s.engine.logger.Debug("suppressed error",
			"label", label, "source", s.source, "line", line)
	default:
		s.engine.logger.Error("unknown error",
			"label", label, "count", count, "source", s.source, "line", line,
			"message", message)
	}

	s.engine.recordError(rec)
}

// ErrorCount returns the number of recorded errors for a classification.
func (s *Sink) ErrorCount(class types.Classification) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[class]
}

// reset clears the counters at the start of a run.
func (s *Sink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = make(map[types.Classification]int)
}
