package scenario

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	stress "github.com/indexity-io/orientdb-stress"
	"github.com/indexity-io/orientdb-stress/classify"
	"github.com/indexity-io/orientdb-stress/internal/logging"
	"github.com/indexity-io/orientdb-stress/internal/metrics"
	"github.com/indexity-io/orientdb-stress/types"
)

// Tailer follows an external event stream for the duration of a run.
//
// monitor.LogMonitor implements this interface.
type Tailer interface {
	// Start attaches the tailer.
	Start(ctx context.Context)

	// Stop detaches the tailer and flushes pending output.
	Stop()
}

// PrepareFunc makes the cluster ready for traffic after the containers
// are up: wait for the REST API, create the database, install the
// schema.
type PrepareFunc func(ctx context.Context) error

// Engine drives one scenario run through its phase sequence.
type Engine struct {
	controller stress.ClusterController
	detector   stress.StabilityDetector
	nodes      []string

	workload   stress.WorkloadRunner
	validators []stress.Validator
	recorder   stress.Recorder
	tailers    []Tailer
	prepare    PrepareFunc

	logger  types.Logger
	metrics types.MetricsCollector

	length          time.Duration
	restartInterval time.Duration
	validateTimeout time.Duration
	failThreshold   int
	seed            int64

	phase atomic.Int32

	mu     sync.Mutex
	runID  string
	phases []types.Phase
	sinks  []*Sink
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the engine's logger.
//
// Parameters:
//   - logger: Logger instance (default: no-op logger)
//
// Returns:
//   - EngineOption: Configuration option
func WithEngineLogger(logger types.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithEngineMetrics sets the engine's metrics collector.
//
// Parameters:
//   - collector: Metrics collector (default: no-op)
//
// Returns:
//   - EngineOption: Configuration option
func WithEngineMetrics(collector types.MetricsCollector) EngineOption {
	return func(e *Engine) {
		e.metrics = collector
	}
}

// WithRecorder sets the transcript recorder.
//
// Parameters:
//   - recorder: Transcript sink (default: no transcript)
//
// Returns:
//   - EngineOption: Configuration option
func WithRecorder(recorder stress.Recorder) EngineOption {
	return func(e *Engine) {
		e.recorder = recorder
	}
}

// WithWorkload attaches the background workload. Its presence adds the
// "-under-load" suffix to the scenario name.
//
// Parameters:
//   - workload: Workload runner, or nil for no workload
//
// Returns:
//   - EngineOption: Configuration option
func WithWorkload(workload stress.WorkloadRunner) EngineOption {
	return func(e *Engine) {
		e.workload = workload
	}
}

// WithValidators appends validators run during every VALIDATE phase.
//
// Parameters:
//   - validators: Validators, run in order
//
// Returns:
//   - EngineOption: Configuration option
func WithValidators(validators ...stress.Validator) EngineOption {
	return func(e *Engine) {
		e.validators = append(e.validators, validators...)
	}
}

// WithTailers attaches log tailers started after the cluster is up.
//
// Parameters:
//   - tailers: Tailers, one per monitored stream
//
// Returns:
//   - EngineOption: Configuration option
func WithTailers(tailers ...Tailer) EngineOption {
	return func(e *Engine) {
		e.tailers = append(e.tailers, tailers...)
	}
}

// WithPrepare sets the cluster preparation step run after startup.
//
// Parameters:
//   - prepare: Preparation function
//
// Returns:
//   - EngineOption: Configuration option
func WithPrepare(prepare PrepareFunc) EngineOption {
	return func(e *Engine) {
		e.prepare = prepare
	}
}

// WithLength sets the scenario length.
//
// Parameters:
//   - length: RUNNING phase duration (default: 60s)
//
// Returns:
//   - EngineOption: Configuration option
func WithLength(length time.Duration) EngineOption {
	return func(e *Engine) {
		e.length = length
	}
}

// WithRestartInterval sets the pause between disturbance cycles.
//
// Parameters:
//   - interval: Pause duration (default: 10s)
//
// Returns:
//   - EngineOption: Configuration option
func WithRestartInterval(interval time.Duration) EngineOption {
	return func(e *Engine) {
		e.restartInterval = interval
	}
}

// WithValidateTimeout bounds each VALIDATE phase.
//
// Parameters:
//   - timeout: Validation deadline (default: 60s)
//
// Returns:
//   - EngineOption: Configuration option
func WithValidateTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) {
		e.validateTimeout = timeout
	}
}

// WithFailThreshold fails the run once this many UNKNOWN errors have
// been recorded across all sources. Zero disables the check.
//
// Parameters:
//   - threshold: Maximum tolerated unknown errors
//
// Returns:
//   - EngineOption: Configuration option
func WithFailThreshold(threshold int) EngineOption {
	return func(e *Engine) {
		e.failThreshold = threshold
	}
}

// WithSeed records the run's random seed in results for reproducibility.
// The seed itself feeds the policy and workload, not the engine.
//
// Parameters:
//   - seed: Random seed
//
// Returns:
//   - EngineOption: Configuration option
func WithSeed(seed int64) EngineOption {
	return func(e *Engine) {
		e.seed = seed
	}
}

// NewEngine creates an Engine for one cluster.
//
// Parameters:
//   - controller: Cluster lifecycle controller
//   - detector: Stabilization detector
//   - nodes: Node names in cluster order
//   - opts: Optional configuration options
//
// Returns:
//   - *Engine: The engine
func NewEngine(controller stress.ClusterController, detector stress.StabilityDetector, nodes []string, opts ...EngineOption) *Engine {
	e := &Engine{
		controller:      controller,
		detector:        detector,
		nodes:           append([]string(nil), nodes...),
		logger:          logging.NewNopLogger(),
		metrics:         metrics.NewNopMetrics(),
		length:          60 * time.Second,
		restartInterval: 10 * time.Second,
		validateTimeout: 60 * time.Second,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// AttachReporter creates an error sink for one source, bound to this
// engine's run transcript. Call before Run.
//
// Parameters:
//   - source: Source name, a node name or "workload"
//   - classifier: Classifier for the source's message format
//
// Returns:
//   - *Sink: The reporter to hand to the source
func (e *Engine) AttachReporter(source string, classifier *classify.Classifier) *Sink {
	s := &Sink{
		engine:     e,
		source:     source,
		classifier: classifier,
		counts:     make(map[types.Classification]int),
	}
	e.mu.Lock()
	e.sinks = append(e.sinks, s)
	e.mu.Unlock()
	return s
}

// AttachWorkload wires the background workload and its validators into
// the engine. Call before Run. This exists for callers whose workload
// components need a Sink from AttachReporter, which in turn needs the
// engine to exist first.
//
// Parameters:
//   - workload: Background workload runner
//   - validators: Validators run after each stabilization
func (e *Engine) AttachWorkload(workload stress.WorkloadRunner, validators ...stress.Validator) {
	e.workload = workload
	e.validators = append(e.validators, validators...)
}

// AttachTailer registers a log tailer started with the cluster. Call
// before Run.
func (e *Engine) AttachTailer(t Tailer) {
	e.tailers = append(e.tailers, t)
}

// Phase returns the engine's current phase.
func (e *Engine) Phase() types.Phase {
	return types.Phase(e.phase.Load())
}

// Run executes one scenario under the given policy.
//
// Parameters:
//   - ctx: Context bounding the run
//   - policy: Disturbance policy deciding the timeline
//
// Returns:
//   - types.ScenarioResult: The run's result, also sent to the recorder
//   - error: The failure that ended the run, nil when it completed
func (e *Engine) Run(ctx context.Context, policy stress.DisturbancePolicy) (types.ScenarioResult, error) {
	name := policy.Name()
	if e.workload != nil {
		name += "-under-load"
	}

	e.mu.Lock()
	e.runID = uuid.NewString()
	e.phases = nil
	runID := e.runID
	sinks := append([]*Sink(nil), e.sinks...)
	e.mu.Unlock()
	for _, s := range sinks {
		s.reset()
	}

	res := types.ScenarioResult{
		RunID:       runID,
		Scenario:    name,
		Seed:        e.seed,
		StartedAt:   time.Now(),
		ErrorCounts: make(map[types.Classification]int),
	}

	e.setPhase(types.PhaseInit)
	e.logger.Info("running scenario",
		"scenario", name, "run_id", runID, "seed", e.seed, "length", e.length)

	failPhase, runErr := e.runPhases(ctx, policy, &res)

	e.setPhase(types.PhaseStopping)
	if e.workload != nil {
		e.workload.Stop()
	}
	for _, tailer := range e.tailers {
		tailer.Stop()
	}
	// Teardown proceeds even when the run was cancelled.
	if err := e.controller.RemoveAll(context.WithoutCancel(ctx)); err != nil {
		e.logger.Warn("cluster teardown failed", "error", err)
	}
	e.metrics.SetNodesUp(0)

	res.EndedAt = time.Now()
	for _, s := range sinks {
		for _, class := range []types.Classification{types.ClassUnknown, types.ClassKnown, types.ClassSuppressed} {
			res.ErrorCounts[class] += s.ErrorCount(class)
		}
	}

	if runErr != nil {
		res.Outcome = types.OutcomeFailed
		res.FailurePhase = failPhase
		e.setPhase(types.PhaseFailed)
		e.metrics.IncScenarioFailed(name)
		e.logger.Error("scenario failed",
			"scenario", name, "run_id", runID, "phase", failPhase.String(), "error", runErr)
	} else {
		res.Outcome = types.OutcomeCompleted
		e.setPhase(types.PhaseCompleted)
		e.metrics.IncScenarioCompleted(name)
		e.logger.Info("scenario completed",
			"scenario", name, "run_id", runID, "disturbances", res.Disturbances)
	}

	e.mu.Lock()
	res.Phases = append([]types.Phase(nil), e.phases...)
	e.mu.Unlock()

	if e.recorder != nil {
		e.recorder.RecordResult(res)
	}
	return res, runErr
}

// runPhases drives the run up to and through the RUNNING loop. It
// returns the phase a failure happened in.
func (e *Engine) runPhases(ctx context.Context, policy stress.DisturbancePolicy, res *types.ScenarioResult) (types.Phase, error) {
	e.setPhase(types.PhaseStartingCluster)
	if err := e.controller.RemoveAll(ctx); err != nil {
		return types.PhaseStartingCluster, err
	}
	// Every run starts from empty data directories; node state from a
	// previous run would poison stabilization and validation.
	for _, node := range e.nodes {
		if err := e.controller.ResetData(ctx, node); err != nil {
			return types.PhaseStartingCluster, err
		}
	}
	if err := e.controller.StartAll(ctx); err != nil {
		return types.PhaseStartingCluster, err
	}
	e.metrics.SetNodesUp(len(e.nodes))
	for _, tailer := range e.tailers {
		tailer.Start(ctx)
	}
	if e.prepare != nil {
		if err := e.prepare(ctx); err != nil {
			return types.PhaseStartingCluster, err
		}
	}

	e.setPhase(types.PhaseWaitingStable)
	if _, err := e.detector.WaitStable(ctx, e.nodes); err != nil {
		return types.PhaseWaitingStable, err
	}

	if e.workload != nil {
		e.setPhase(types.PhaseWorkloadStarting)
		if err := e.workload.Start(ctx); err != nil {
			return types.PhaseWorkloadStarting, err
		}
	}

	e.setPhase(types.PhaseRunning)
	return e.runLoop(ctx, policy, res)
}

// runLoop cycles disturb, stabilize, validate until the scenario length
// elapses.
func (e *Engine) runLoop(ctx context.Context, policy stress.DisturbancePolicy, res *types.ScenarioResult) (types.Phase, error) {
	start := time.Now()
	deadline := start.Add(e.length)
	down := make(map[string]bool)

	for {
		if err := ctx.Err(); err != nil {
			return types.PhaseRunning, err
		}

		if action, ok := policy.NextAction(e.nodes, time.Since(start)); ok {
			e.setPhase(types.PhaseDisturb)
			res.Disturbances++
			e.metrics.IncDisturbance(policy.Name())
			if err := e.execute(ctx, action, down); err != nil {
				return types.PhaseDisturb, err
			}
			e.metrics.SetNodesUp(len(e.nodes) - len(down))
		}

		e.setPhase(types.PhaseWaitingStable)
		if _, err := e.detector.WaitStable(ctx, e.expectedNodes(down)); err != nil {
			return types.PhaseWaitingStable, err
		}

		e.setPhase(types.PhaseValidate)
		if err := e.validate(ctx); err != nil {
			return types.PhaseValidate, err
		}

		e.setPhase(types.PhaseRunning)
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, nil
		}
		wait := e.restartInterval
		if remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return types.PhaseRunning, ctx.Err()
		case <-time.After(wait):
		}
		if !time.Now().Before(deadline) {
			return 0, nil
		}
	}
}

// execute performs one disturbance action and tracks which nodes are
// deliberately down.
func (e *Engine) execute(ctx context.Context, action types.Action, down map[string]bool) error {
	e.logger.Info("disturbing node",
		"node", action.Node,
		"kind", action.Kind.String(),
		"mode", action.Stop.String(),
		"reset", action.Reset,
		"dead_time", action.DeadTime)

	switch action.Kind {
	case types.ActionStop:
		if err := e.stopNode(ctx, action); err != nil {
			return err
		}
		down[action.Node] = true
		return nil

	case types.ActionStart:
		e.setPhase(types.PhaseRestore)
		if action.Reset {
			if err := e.controller.ResetData(ctx, action.Node); err != nil {
				return err
			}
		}
		if err := e.controller.Start(ctx, action.Node); err != nil {
			return err
		}
		delete(down, action.Node)
		return nil

	default:
		if err := e.stopNode(ctx, action); err != nil {
			return err
		}
		if action.DeadTime > 0 {
			e.setPhase(types.PhaseDeadTime)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(action.DeadTime):
			}
		}
		e.setPhase(types.PhaseRestore)
		if action.Reset {
			if err := e.controller.ResetData(ctx, action.Node); err != nil {
				return err
			}
		}
		return e.controller.Start(ctx, action.Node)
	}
}

func (e *Engine) stopNode(ctx context.Context, action types.Action) error {
	if action.Stop == types.StopKill {
		return e.controller.StopKill(ctx, action.Node)
	}
	return e.controller.StopGraceful(ctx, action.Node)
}

// validate runs all validators with the workload held, then applies the
// unknown error threshold. Failures are written to the transcript before
// they end the run.
func (e *Engine) validate(ctx context.Context) error {
	if e.workload != nil {
		if e.workload.Failed() {
			e.recordValidationFailure(types.ErrWorkloadFailed)
			return types.ErrWorkloadFailed
		}
		e.workload.Pause()
		defer e.workload.Resume()
	}

	vctx, cancel := context.WithTimeout(ctx, e.validateTimeout)
	defer cancel()
	for _, v := range e.validators {
		if err := v.Validate(vctx); err != nil {
			e.recordValidationFailure(err)
			return err
		}
	}
	return e.checkUnknownThreshold()
}

func (e *Engine) recordValidationFailure(err error) {
	e.recordError(types.ErrorRecord{
		Time:    time.Now(),
		Phase:   types.PhaseValidate,
		Source:  "workload",
		Message: err.Error(),
		Class:   types.ClassUnknown,
		Label:   "ValidationFailed",
	})
}

func (e *Engine) checkUnknownThreshold() error {
	if e.failThreshold <= 0 {
		return nil
	}
	e.mu.Lock()
	sinks := append([]*Sink(nil), e.sinks...)
	e.mu.Unlock()

	total := 0
	for _, s := range sinks {
		total += s.ErrorCount(types.ClassUnknown)
	}
	if total >= e.failThreshold {
		return fmt.Errorf("stress: unknown error count %d reached fail threshold %d", total, e.failThreshold)
	}
	return nil
}

// expectedNodes returns the nodes that must agree on cluster state:
// everything not deliberately down.
func (e *Engine) expectedNodes(down map[string]bool) []string {
	expected := make([]string, 0, len(e.nodes))
	for _, n := range e.nodes {
		if !down[n] {
			expected = append(expected, n)
		}
	}
	return expected
}

func (e *Engine) setPhase(p types.Phase) {
	e.phase.Store(int32(p))
	e.logger.Debug("entering phase", "phase", p.String())

	e.mu.Lock()
	e.phases = append(e.phases, p)
	runID := e.runID
	e.mu.Unlock()

	if e.recorder != nil {
		e.recorder.RecordPhase(runID, p, time.Now())
	}
}

// recordError forwards a classified record to the recorder under the
// current run id.
func (e *Engine) recordError(rec types.ErrorRecord) {
	if e.recorder == nil {
		return
	}
	e.mu.Lock()
	runID := e.runID
	e.mu.Unlock()
	e.recorder.RecordError(runID, rec)
}
