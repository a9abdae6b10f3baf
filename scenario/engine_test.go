package scenario

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/indexity-io/orientdb-stress/classify"
	"github.com/indexity-io/orientdb-stress/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNodes = []string{"odb1", "odb2", "odb3"}

type fakeController struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (c *fakeController) record(call string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	return c.fail[call]
}

func (c *fakeController) StartAll(context.Context) error               { return c.record("up-all") }
func (c *fakeController) Start(_ context.Context, node string) error   { return c.record("start " + node) }
func (c *fakeController) StopGraceful(_ context.Context, node string) error {
	return c.record("stop " + node)
}
func (c *fakeController) StopKill(_ context.Context, node string) error {
	return c.record("kill " + node)
}
func (c *fakeController) ResetData(_ context.Context, node string) error {
	return c.record("reset " + node)
}
func (c *fakeController) RemoveAll(context.Context) error { return c.record("down") }

func (c *fakeController) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type fakeDetector struct {
	mu    sync.Mutex
	calls [][]string
	errs  []error
}

func (d *fakeDetector) WaitStable(_ context.Context, expected []string) (types.ClusterView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := len(d.calls)
	d.calls = append(d.calls, append([]string(nil), expected...))
	var err error
	if idx < len(d.errs) {
		err = d.errs[idx]
	}
	return types.ClusterView{Expected: expected, Stable: err == nil}, err
}

func (d *fakeDetector) snapshot() [][]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]string(nil), d.calls...)
}

type fakePolicy struct {
	name   string
	script []types.Action
	idx    int
}

func (p *fakePolicy) Name() string        { return p.name }
func (p *fakePolicy) Description() string { return "scripted" }

func (p *fakePolicy) NextAction([]string, time.Duration) (types.Action, bool) {
	if p.idx >= len(p.script) {
		return types.Action{}, false
	}
	action := p.script[p.idx]
	p.idx++
	return action, true
}

type fakeWorkload struct {
	mu       sync.Mutex
	started  int
	stopped  int
	paused   int
	resumed  int
	failed   bool
	startErr error
}

func (w *fakeWorkload) Start(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.started++
	return w.startErr
}

func (w *fakeWorkload) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped++
}

func (w *fakeWorkload) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused++
}

func (w *fakeWorkload) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resumed++
}

func (w *fakeWorkload) Failed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failed
}

type fakeRecorder struct {
	mu      sync.Mutex
	errors  []types.ErrorRecord
	results []types.ScenarioResult
}

func (r *fakeRecorder) RecordPhase(string, types.Phase, time.Time) {}

func (r *fakeRecorder) RecordError(_ string, rec types.ErrorRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, rec)
}

func (r *fakeRecorder) RecordResult(res types.ScenarioResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *fakeRecorder) Close() error { return nil }

func (r *fakeRecorder) errorRecords() []types.ErrorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.ErrorRecord(nil), r.errors...)
}

type fakeValidator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (v *fakeValidator) Validate(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	return v.err
}

func newTestEngine(controller *fakeController, detector *fakeDetector, opts ...EngineOption) *Engine {
	base := []EngineOption{
		WithLength(40 * time.Millisecond),
		WithRestartInterval(2 * time.Millisecond),
		WithSeed(42),
	}
	return NewEngine(controller, detector, testNodes, append(base, opts...)...)
}

func TestEngineUndisturbedRunCompletes(t *testing.T) {
	controller := &fakeController{}
	detector := &fakeDetector{}
	e := newTestEngine(controller, detector)

	res, err := e.Run(context.Background(), &fakePolicy{name: "basic-startup"})
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeCompleted, res.Outcome)
	assert.Equal(t, "basic-startup", res.Scenario)
	assert.Zero(t, res.Disturbances)
	assert.Equal(t, int64(42), res.Seed)
	assert.NotEmpty(t, res.RunID)

	calls := controller.snapshot()
	// Clean slate first: teardown, data reset, start.
	assert.Equal(t, []string{"down", "reset odb1", "reset odb2", "reset odb3", "up-all"}, calls[:5])
	assert.Equal(t, "down", calls[len(calls)-1])

	// Startup stabilization plus at least one per-cycle check, all
	// against the full member set.
	views := detector.snapshot()
	require.GreaterOrEqual(t, len(views), 2)
	for _, expected := range views {
		assert.Equal(t, testNodes, expected)
	}

	assert.Contains(t, res.Phases, types.PhaseValidate)
	assert.Equal(t, types.PhaseCompleted, res.Phases[len(res.Phases)-1])
}

func TestEngineExecutesRestartAction(t *testing.T) {
	controller := &fakeController{}
	detector := &fakeDetector{}
	e := newTestEngine(controller, detector)

	policy := &fakePolicy{name: "random-kill", script: []types.Action{
		{Node: "odb2", Kind: types.ActionRestart, Stop: types.StopKill, Reset: true},
	}}
	res, err := e.Run(context.Background(), policy)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeCompleted, res.Outcome)
	assert.Equal(t, 1, res.Disturbances)

	calls := controller.snapshot()
	killIdx := indexOf(calls, "kill odb2")
	require.GreaterOrEqual(t, killIdx, 0)
	// The data wipe happens between the kill and the restart.
	assert.Equal(t, "reset odb2", calls[killIdx+1])
	assert.Equal(t, "start odb2", calls[killIdx+2])
	assert.Contains(t, res.Phases, types.PhaseDisturb)
	assert.Contains(t, res.Phases, types.PhaseRestore)
}

func TestEngineDeadTimeHoldsNodeDown(t *testing.T) {
	controller := &fakeController{}
	detector := &fakeDetector{}
	e := newTestEngine(controller, detector, WithLength(60*time.Millisecond))

	policy := &fakePolicy{name: "random-restart", script: []types.Action{
		{Node: "odb1", Kind: types.ActionRestart, Stop: types.StopGraceful, DeadTime: 20 * time.Millisecond},
	}}
	res, err := e.Run(context.Background(), policy)
	require.NoError(t, err)
	assert.Contains(t, res.Phases, types.PhaseDeadTime)

	calls := controller.snapshot()
	stopIdx := indexOf(calls, "stop odb1")
	require.GreaterOrEqual(t, stopIdx, 0)
	assert.Equal(t, "start odb1", calls[stopIdx+1])
}

func TestEngineStopActionShrinksExpectedSet(t *testing.T) {
	controller := &fakeController{}
	detector := &fakeDetector{}
	e := newTestEngine(controller, detector, WithLength(60*time.Millisecond))

	policy := &fakePolicy{name: "alternating-stop-start", script: []types.Action{
		{Node: "odb3", Kind: types.ActionStop, Stop: types.StopGraceful},
		{Node: "odb3", Kind: types.ActionStart},
	}}
	res, err := e.Run(context.Background(), policy)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Disturbances)

	views := detector.snapshot()
	require.GreaterOrEqual(t, len(views), 3)
	// Startup check sees all nodes, the post-stop check must not expect
	// the stopped node, the post-start check sees all nodes again.
	assert.Equal(t, testNodes, views[0])
	assert.Equal(t, []string{"odb1", "odb2"}, views[1])
	assert.Equal(t, testNodes, views[2])
}

func TestEngineFailsWhenStabilizationFails(t *testing.T) {
	controller := &fakeController{}
	detector := &fakeDetector{errs: []error{nil, types.ErrStabilizeTimeout}}
	e := newTestEngine(controller, detector)

	res, err := e.Run(context.Background(), &fakePolicy{name: "basic-startup"})
	require.ErrorIs(t, err, types.ErrStabilizeTimeout)
	assert.Equal(t, types.OutcomeFailed, res.Outcome)
	assert.Equal(t, types.PhaseWaitingStable, res.FailurePhase)

	// Teardown still runs on failure.
	calls := controller.snapshot()
	assert.Equal(t, "down", calls[len(calls)-1])
	assert.Equal(t, types.PhaseFailed, res.Phases[len(res.Phases)-1])
}

func TestEngineFailsOnValidationError(t *testing.T) {
	controller := &fakeController{}
	detector := &fakeDetector{}
	recorder := &fakeRecorder{}
	validator := &fakeValidator{err: errors.New("stress: validation lost update on record 10100")}
	e := newTestEngine(controller, detector, WithValidators(validator), WithRecorder(recorder))

	res, err := e.Run(context.Background(), &fakePolicy{name: "basic-startup"})
	require.Error(t, err)
	assert.Equal(t, types.OutcomeFailed, res.Outcome)
	assert.Equal(t, types.PhaseValidate, res.FailurePhase)
	assert.Equal(t, 1, validator.calls)

	// The failure lands in the transcript, not just the run error.
	recs := recorder.errorRecords()
	require.Len(t, recs, 1)
	assert.Equal(t, types.PhaseValidate, recs[0].Phase)
	assert.Equal(t, "workload", recs[0].Source)
	assert.Contains(t, recs[0].Message, "lost update")
}

func TestEngineWorkloadLifecycle(t *testing.T) {
	controller := &fakeController{}
	detector := &fakeDetector{}
	workload := &fakeWorkload{}
	validator := &fakeValidator{}
	e := newTestEngine(controller, detector, WithWorkload(workload), WithValidators(validator))

	res, err := e.Run(context.Background(), &fakePolicy{name: "random-restart"})
	require.NoError(t, err)
	assert.Equal(t, "random-restart-under-load", res.Scenario)
	assert.Equal(t, 1, workload.started)
	assert.Equal(t, 1, workload.stopped)
	// The workload is held during every validation pass.
	assert.Equal(t, workload.paused, workload.resumed)
	assert.GreaterOrEqual(t, workload.paused, 1)
	assert.GreaterOrEqual(t, validator.calls, 1)
}

func TestEngineFailsWhenWorkloadFails(t *testing.T) {
	controller := &fakeController{}
	detector := &fakeDetector{}
	workload := &fakeWorkload{failed: true}
	e := newTestEngine(controller, detector, WithWorkload(workload))

	res, err := e.Run(context.Background(), &fakePolicy{name: "random-restart"})
	require.ErrorIs(t, err, types.ErrWorkloadFailed)
	assert.Equal(t, types.PhaseValidate, res.FailurePhase)
}

func TestEngineFailsOnWorkloadStartError(t *testing.T) {
	controller := &fakeController{}
	detector := &fakeDetector{}
	workload := &fakeWorkload{startErr: errors.New("stress: record test data setup failed")}
	e := newTestEngine(controller, detector, WithWorkload(workload))

	res, err := e.Run(context.Background(), &fakePolicy{name: "random-restart"})
	require.Error(t, err)
	assert.Equal(t, types.PhaseWorkloadStarting, res.FailurePhase)
}

func TestEnginePrepareFailureFailsStartup(t *testing.T) {
	controller := &fakeController{}
	detector := &fakeDetector{}
	e := newTestEngine(controller, detector, WithPrepare(func(context.Context) error {
		return errors.New("stress: creating database failed")
	}))

	res, err := e.Run(context.Background(), &fakePolicy{name: "basic-startup"})
	require.Error(t, err)
	assert.Equal(t, types.PhaseStartingCluster, res.FailurePhase)
}

func TestEngineUnknownErrorThresholdFailsRun(t *testing.T) {
	controller := &fakeController{}
	detector := &fakeDetector{}
	e := newTestEngine(controller, detector, WithFailThreshold(1))
	reporter := e.AttachReporter("odb1", classify.NewServerClassifier())

	go func() {
		time.Sleep(5 * time.Millisecond)
		// Exception-shaped but matching no known rule.
		reporter.ReportError(10, "com.example.OBogusException: something novel")
	}()

	res, err := e.Run(context.Background(), &fakePolicy{name: "basic-startup"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fail threshold")
	assert.Equal(t, types.OutcomeFailed, res.Outcome)
	assert.Equal(t, 1, res.ErrorCounts[types.ClassUnknown])
}

func TestEngineContextCancellation(t *testing.T) {
	controller := &fakeController{}
	detector := &fakeDetector{}
	e := newTestEngine(controller, detector, WithLength(10*time.Second), WithRestartInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res, err := e.Run(ctx, &fakePolicy{name: "basic-startup"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, types.OutcomeFailed, res.Outcome)

	// Teardown happens despite the cancelled context.
	calls := controller.snapshot()
	assert.Equal(t, "down", calls[len(calls)-1])
}

func TestSinkClassifiesAndCounts(t *testing.T) {
	e := newTestEngine(&fakeController{}, &fakeDetector{})
	sink := e.AttachReporter("odb2", classify.NewServerClassifier())

	// Not error-shaped: dropped.
	sink.ReportError(1, "odb2 | 2024-03-01 10:00:00:000 INFO cluster joined [OHazelcastPlugin]")
	assert.Zero(t, sink.ErrorCount(types.ClassUnknown))
	assert.Zero(t, sink.ErrorCount(types.ClassSuppressed))

	// Known suppressed pattern.
	sink.ReportError(2, "WARNI [10.0.0.2]:5701 [orientdb] Connection reset [TcpIpConnection]\njava.io.IOException: Connection reset by peer")
	assert.Equal(t, 1, sink.ErrorCount(types.ClassSuppressed))

	// Exception-shaped with no matching rule: unknown.
	sink.ReportError(3, "com.example.OBogusException: novel failure")
	assert.Equal(t, 1, sink.ErrorCount(types.ClassUnknown))
}

func indexOf(haystack []string, needle string) int {
	for i, s := range haystack {
		if s == needle {
			return i
		}
	}
	return -1
}
