package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	stress "github.com/indexity-io/orientdb-stress"
	"github.com/indexity-io/orientdb-stress/internal/logging"
	"github.com/indexity-io/orientdb-stress/types"
)

// NATSRecorderConfig configures the NATS JetStream recorder.
type NATSRecorderConfig struct {
	// StreamName is the JetStream stream holding transcript events.
	// Default: "STRESS"
	StreamName string

	// SubjectPrefix prefixes event subjects. Events are published to
	// "{SubjectPrefix}.{kind}.{runID}" (e.g. "stress.phase.8f2c...").
	// Default: "stress"
	SubjectPrefix string

	// MaxAge is the maximum age of events in the stream.
	// Default: 24 hours
	MaxAge time.Duration

	// PublishTimeout is the timeout for publishing one event.
	// Default: 5 seconds
	PublishTimeout time.Duration
}

// DefaultNATSRecorderConfig returns the default configuration.
//
// Returns:
//   - NATSRecorderConfig: Default configuration
func DefaultNATSRecorderConfig() NATSRecorderConfig {
	return NATSRecorderConfig{
		StreamName:     "STRESS",
		SubjectPrefix:  "stress",
		MaxAge:         24 * time.Hour,
		PublishTimeout: 5 * time.Second,
	}
}

// NATSRecorder publishes transcript events to a JetStream stream so live
// dashboards and collectors can follow a run as it happens.
type NATSRecorder struct {
	js     jetstream.JetStream
	config NATSRecorderConfig
	logger types.Logger
}

// Compile-time assertion that NATSRecorder implements stress.Recorder.
var _ stress.Recorder = (*NATSRecorder)(nil)

// NATSRecorderOption configures a NATSRecorder.
type NATSRecorderOption func(*NATSRecorder)

// WithNATSStreamName sets the JetStream stream name.
//
// Parameters:
//   - name: Stream name
//
// Returns:
//   - NATSRecorderOption: Configuration option
func WithNATSStreamName(name string) NATSRecorderOption {
	return func(r *NATSRecorder) {
		r.config.StreamName = name
	}
}

// WithNATSSubjectPrefix sets the subject prefix for events.
//
// Parameters:
//   - prefix: Subject prefix
//
// Returns:
//   - NATSRecorderOption: Configuration option
func WithNATSSubjectPrefix(prefix string) NATSRecorderOption {
	return func(r *NATSRecorder) {
		r.config.SubjectPrefix = prefix
	}
}

// WithNATSLogger sets the recorder's logger.
//
// Parameters:
//   - logger: Logger instance (default: no-op logger)
//
// Returns:
//   - NATSRecorderOption: Configuration option
func WithNATSLogger(logger types.Logger) NATSRecorderOption {
	return func(r *NATSRecorder) {
		r.logger = logger
	}
}

// NewNATSRecorder creates a NATSRecorder and ensures its stream exists.
//
// The caller owns the NATS connection and the JetStream context.
//
// Parameters:
//   - js: JetStream context (created via jetstream.New(conn))
//   - opts: Optional configuration options
//
// Returns:
//   - *NATSRecorder: The recorder
//   - error: Error if the stream could not be created or updated
func NewNATSRecorder(js jetstream.JetStream, opts ...NATSRecorderOption) (*NATSRecorder, error) {
	if js == nil {
		return nil, errors.New("stress: JetStream context is nil")
	}

	r := &NATSRecorder{
		js:     js,
		config: DefaultNATSRecorderConfig(),
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        r.config.StreamName,
		Description: "OrientDB stress scenario transcripts",
		Subjects:    []string{r.config.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      r.config.MaxAge,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
	})
	if err != nil {
		return nil, fmt.Errorf("stress: failed to create/update transcript stream: %w", err)
	}

	return r, nil
}

// phaseEvent is the wire form of a phase transition.
type phaseEvent struct {
	RunID string    `json:"run_id"`
	Phase string    `json:"phase"`
	At    time.Time `json:"at"`
}

// errorEvent is the wire form of a classified error.
type errorEvent struct {
	RunID   string    `json:"run_id"`
	At      time.Time `json:"at"`
	Phase   string    `json:"phase"`
	Source  string    `json:"source"`
	Line    int       `json:"line"`
	Class   string    `json:"class"`
	Label   string    `json:"label"`
	Message string    `json:"message"`
}

// resultEvent is the wire form of a terminal result.
type resultEvent struct {
	RunID            string    `json:"run_id"`
	Scenario         string    `json:"scenario"`
	Outcome          string    `json:"outcome"`
	FailurePhase     string    `json:"failure_phase"`
	Disturbances     int       `json:"disturbances"`
	Seed             int64     `json:"seed"`
	UnknownErrors    int       `json:"unknown_errors"`
	KnownErrors      int       `json:"known_errors"`
	SuppressedErrors int       `json:"suppressed_errors"`
	StartedAt        time.Time `json:"started_at"`
	EndedAt          time.Time `json:"ended_at"`
}

// RecordPhase publishes a phase transition.
func (r *NATSRecorder) RecordPhase(runID string, phase types.Phase, at time.Time) {
	r.publish("phase", runID, phaseEvent{RunID: runID, Phase: phase.String(), At: at})
}

// RecordError publishes one classified error.
func (r *NATSRecorder) RecordError(runID string, rec types.ErrorRecord) {
	r.publish("error", runID, errorEvent{
		RunID:   runID,
		At:      rec.Time,
		Phase:   rec.Phase.String(),
		Source:  rec.Source,
		Line:    rec.Line,
		Class:   rec.Class.String(),
		Label:   rec.Label,
		Message: rec.Message,
	})
}

// RecordResult publishes the run's terminal result.
func (r *NATSRecorder) RecordResult(res types.ScenarioResult) {
	r.publish("result", res.RunID, resultEvent{
		RunID:            res.RunID,
		Scenario:         res.Scenario,
		Outcome:          res.Outcome.String(),
		FailurePhase:     res.FailurePhase.String(),
		Disturbances:     res.Disturbances,
		Seed:             res.Seed,
		UnknownErrors:    res.ErrorCounts[types.ClassUnknown],
		KnownErrors:      res.ErrorCounts[types.ClassKnown],
		SuppressedErrors: res.ErrorCounts[types.ClassSuppressed],
		StartedAt:        res.StartedAt,
		EndedAt:          res.EndedAt,
	})
}

// publish sends one event. Publish failures never fail the run; they are
// logged and dropped.
func (r *NATSRecorder) publish(kind, runID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		r.logger.Warn("transcript event marshal failed", "kind", kind, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.config.PublishTimeout)
	defer cancel()

	subject := fmt.Sprintf("%s.%s.%s", r.config.SubjectPrefix, kind, runID)
	if _, err := r.js.Publish(ctx, subject, data); err != nil {
		r.logger.Warn("transcript event publish failed", "subject", subject, "error", err)
	}
}

// Close implements stress.Recorder. The NATS connection belongs to the
// caller and stays open.
func (r *NATSRecorder) Close() error {
	return nil
}
