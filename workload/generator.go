package workload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	stress "github.com/indexity-io/orientdb-stress"
	"github.com/indexity-io/orientdb-stress/internal/logging"
	"github.com/indexity-io/orientdb-stress/internal/metrics"
	"github.com/indexity-io/orientdb-stress/orient"
	"github.com/indexity-io/orientdb-stress/types"
	"golang.org/x/time/rate"
)

// Generator drives concurrent record traffic against the cluster.
//
// All workers share one aggregate rate limiter, so the configured rate is
// the total across the pool. Each cycle reads a random record, increments
// the property matching the configured index kind, writes it back by
// record identity, and re-reads it to detect lost updates. A cycle that
// keeps failing beyond the retry window marks the whole workload failed.
type Generator struct {
	mgr         *RecordManager
	kind        types.IndexKind
	workers     int
	limiter     *rate.Limiter
	readOnly    bool
	retryWindow time.Duration
	reporter    stress.ErrorReporter
	logger      types.Logger
	metrics     types.MetricsCollector

	gate gate

	failed      atomic.Bool
	ops         atomic.Int64
	lostUpdates atomic.Int64
	seq         atomic.Int64

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// Compile-time assertion that Generator implements stress.WorkloadRunner.
var _ stress.WorkloadRunner = (*Generator)(nil)

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithWorkers sets the worker pool size.
//
// Parameters:
//   - n: Number of workers (default: 1)
//
// Returns:
//   - GeneratorOption: Configuration option
func WithWorkers(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithRate sets the aggregate operation rate across all workers.
//
// Parameters:
//   - opsPerSecond: Total operations per second (default: 10)
//
// Returns:
//   - GeneratorOption: Configuration option
func WithRate(opsPerSecond float64) GeneratorOption {
	return func(g *Generator) {
		if opsPerSecond > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(opsPerSecond), 1)
		}
	}
}

// WithIndexKind selects which indexed property the workload exercises.
//
// Parameters:
//   - kind: Index kind (default: types.IndexNotUnique)
//
// Returns:
//   - GeneratorOption: Configuration option
func WithIndexKind(kind types.IndexKind) GeneratorOption {
	return func(g *Generator) {
		g.kind = kind
	}
}

// WithReadOnly switches the workload to read-only cycles.
//
// A read-only cycle performs three reads of the chosen record instead of
// the read-update-reread sequence.
//
// Returns:
//   - GeneratorOption: Configuration option
func WithReadOnly(readOnly bool) GeneratorOption {
	return func(g *Generator) {
		g.readOnly = readOnly
	}
}

// WithRetryWindow sets how long one cycle may keep retrying before the
// workload is marked failed.
//
// Parameters:
//   - window: Retry window (default: 60s)
//
// Returns:
//   - GeneratorOption: Configuration option
func WithRetryWindow(window time.Duration) GeneratorOption {
	return func(g *Generator) {
		g.retryWindow = window
	}
}

// WithErrorReporter routes request failures to a reporter for
// classification.
//
// Parameters:
//   - reporter: Error reporter (default: failures are only logged)
//
// Returns:
//   - GeneratorOption: Configuration option
func WithErrorReporter(reporter stress.ErrorReporter) GeneratorOption {
	return func(g *Generator) {
		g.reporter = reporter
	}
}

// WithGeneratorLogger sets the generator's logger.
//
// Parameters:
//   - logger: Logger instance (default: no-op logger)
//
// Returns:
//   - GeneratorOption: Configuration option
func WithGeneratorLogger(logger types.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithGeneratorMetrics sets the generator's metrics collector.
//
// Parameters:
//   - collector: Metrics collector (default: no-op)
//
// Returns:
//   - GeneratorOption: Configuration option
func WithGeneratorMetrics(collector types.MetricsCollector) GeneratorOption {
	return func(g *Generator) {
		g.metrics = collector
	}
}

// NewGenerator creates a Generator over the given record set.
//
// Parameters:
//   - mgr: Record manager owning the test data
//   - opts: Optional configuration options
//
// Returns:
//   - *Generator: The generator
func NewGenerator(mgr *RecordManager, opts ...GeneratorOption) *Generator {
	g := &Generator{
		mgr:         mgr,
		kind:        types.IndexNotUnique,
		workers:     1,
		limiter:     rate.NewLimiter(rate.Limit(10), 1),
		retryWindow: 60 * time.Second,
		logger:      logging.NewNopLogger(),
		metrics:     metrics.NewNopMetrics(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Start prepares the test data set and launches the worker pool.
//
// Parameters:
//   - ctx: Context bounding the whole workload
//
// Returns:
//   - error: Error if test data setup did not complete
func (g *Generator) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return nil
	}

	if err := g.mgr.Setup(ctx, g.retryWindow); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.started = true

	g.logger.Info("starting workload",
		"workers", g.workers,
		"rate", float64(g.limiter.Limit()),
		"kind", g.kind,
		"read_only", g.readOnly)

	for i := 0; i < g.workers; i++ {
		g.wg.Add(1)
		go g.run(runCtx, i)
	}
	return nil
}

// Stop terminates the worker pool and waits for it to drain.
func (g *Generator) Stop() {
	g.mu.Lock()
	cancel := g.cancel
	g.started = false
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	g.wg.Wait()
}

// Pause blocks workers before their next cycle. In-flight cycles finish.
func (g *Generator) Pause() {
	g.gate.close()
	g.logger.Info("workload paused")
}

// Resume releases paused workers.
func (g *Generator) Resume() {
	g.gate.open()
	g.logger.Info("workload resumed")
}

// Failed reports whether any cycle exhausted its retry window.
func (g *Generator) Failed() bool {
	return g.failed.Load()
}

// Ops returns the number of completed cycles.
func (g *Generator) Ops() int64 {
	return g.ops.Load()
}

// LostUpdates returns the number of detected lost updates.
func (g *Generator) LostUpdates() int64 {
	return g.lostUpdates.Load()
}

func (g *Generator) run(ctx context.Context, worker int) {
	defer g.wg.Done()
	for {
		if err := g.limiter.Wait(ctx); err != nil {
			return
		}
		if err := g.gate.wait(ctx); err != nil {
			return
		}

		id := g.mgr.RandomID()
		if err := g.cycleWithRetry(ctx, id); err != nil {
			if ctx.Err() != nil {
				return
			}
			g.failed.Store(true)
			g.logger.Error("workload cycle failed permanently, stopping worker",
				"worker", worker, "record", id, "error", err)
			return
		}
		g.ops.Add(1)
	}
}

// cycleWithRetry keeps attempting one cycle until it succeeds or the
// retry window closes. Node restarts routinely fail requests mid-cycle,
// so failures inside the window are reported and retried, not fatal.
func (g *Generator) cycleWithRetry(ctx context.Context, id int) error {
	deadline := time.Now().Add(g.retryWindow)
	for {
		start := time.Now()
		err := g.cycle(ctx, id)
		if err == nil {
			g.metrics.IncWorkloadOp(g.kind.String())
			g.metrics.ObserveWorkloadOpDuration(g.kind.String(), time.Since(start).Seconds())
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		g.metrics.IncWorkloadError(g.kind.String())
		g.report(err)
		if time.Now().After(deadline) {
			return fmt.Errorf("stress: retry window exhausted: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (g *Generator) cycle(ctx context.Context, id int) error {
	if g.readOnly {
		for i := 0; i < 3; i++ {
			if _, err := g.mgr.Select(ctx, id); err != nil {
				return err
			}
		}
		return nil
	}

	rec, err := g.mgr.Select(ctx, id)
	if err != nil {
		return err
	}
	bump(&rec, g.kind)
	if err := g.mgr.UpdateProp(ctx, rec, g.kind); err != nil {
		return err
	}

	got, err := g.mgr.Select(ctx, id)
	if err != nil {
		return err
	}
	if got.Value(g.kind) != rec.Value(g.kind) {
		g.lostUpdates.Add(1)
		return fmt.Errorf("stress: lost update on record %d: wrote %d, read back %d",
			id, rec.Value(g.kind), got.Value(g.kind))
	}
	return nil
}

// report forwards a failed request to the error reporter in the wire
// format the REST classifier expects.
func (g *Generator) report(err error) {
	if g.reporter == nil {
		g.logger.Warn("workload request failed", "error", err)
		return
	}
	seq := int(g.seq.Add(1))

	var restErr *orient.RESTError
	if errors.As(err, &restErr) {
		g.reporter.ReportError(seq, fmt.Sprintf("HTTP %s %d %s", restErr.Server, restErr.Code, restErr.Message))
		return
	}
	g.reporter.ReportError(seq, err.Error())
}

// bump increments the record property the workload writes.
func bump(rec *types.WorkloadRecord, kind types.IndexKind) {
	switch kind {
	case types.IndexUnique:
		rec.Unique++
	case types.IndexFullText:
		rec.FullText++
	default:
		rec.NotUnique++
	}
}

// gate lets workers be paused between cycles without tearing the pool
// down.
type gate struct {
	mu     sync.Mutex
	paused chan struct{}
}

// close pauses the gate. Idempotent.
func (g *gate) close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused == nil {
		g.paused = make(chan struct{})
	}
}

// open releases the gate. Idempotent.
func (g *gate) open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused != nil {
		close(g.paused)
		g.paused = nil
	}
}

// wait blocks while the gate is paused.
func (g *gate) wait(ctx context.Context) error {
	g.mu.Lock()
	paused := g.paused
	g.mu.Unlock()
	if paused == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-paused:
		return nil
	}
}
