// Package stability implements cluster stabilization detection.
//
// After every disturbance the harness must not resume until the cluster
// has genuinely converged: every expected node answers, and every node's
// own HA view lists exactly the expected member set with all databases
// online. Agreement of all views is required because a restarted node can
// report ONLINE for itself while its peers still see it synchronising.
package stability

import (
	"context"
	"sort"
	"time"

	stress "github.com/indexity-io/orientdb-stress"
	"github.com/indexity-io/orientdb-stress/internal/logging"
	"github.com/indexity-io/orientdb-stress/internal/metrics"
	"github.com/indexity-io/orientdb-stress/types"
)

// StatusSource provides one node's view of the cluster.
//
// orient.Server implements this interface.
type StatusSource interface {
	// Name returns the node name.
	Name() string

	// HAStatus captures the node's current cluster view.
	HAStatus(ctx context.Context) (types.HAStatusSnapshot, error)
}

// Detector polls HA views until the cluster converges.
type Detector struct {
	sources map[string]StatusSource
	logger  types.Logger
	metrics types.MetricsCollector
	timeout time.Duration
	tick    time.Duration
}

// Compile-time assertion that Detector implements stress.StabilityDetector.
var _ stress.StabilityDetector = (*Detector)(nil)

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithDetectorLogger sets the detector's logger.
//
// Parameters:
//   - logger: Logger instance (default: no-op logger)
//
// Returns:
//   - DetectorOption: Configuration option
func WithDetectorLogger(logger types.Logger) DetectorOption {
	return func(d *Detector) {
		d.logger = logger
	}
}

// WithDetectorMetrics sets the detector's metrics collector.
//
// Parameters:
//   - collector: Metrics collector (default: no-op)
//
// Returns:
//   - DetectorOption: Configuration option
func WithDetectorMetrics(collector types.MetricsCollector) DetectorOption {
	return func(d *Detector) {
		d.metrics = collector
	}
}

// WithTimeout sets the stabilization deadline per WaitStable call.
//
// Parameters:
//   - timeout: Deadline (default: 60s)
//
// Returns:
//   - DetectorOption: Configuration option
func WithTimeout(timeout time.Duration) DetectorOption {
	return func(d *Detector) {
		d.timeout = timeout
	}
}

// WithTick sets the poll interval.
//
// Parameters:
//   - tick: Poll interval (default: 500ms)
//
// Returns:
//   - DetectorOption: Configuration option
func WithTick(tick time.Duration) DetectorOption {
	return func(d *Detector) {
		d.tick = tick
	}
}

// NewDetector creates a Detector over the given status sources.
//
// Parameters:
//   - sources: One StatusSource per cluster node
//   - opts: Optional configuration options
//
// Returns:
//   - *Detector: The detector
func NewDetector(sources []StatusSource, opts ...DetectorOption) *Detector {
	d := &Detector{
		sources: make(map[string]StatusSource, len(sources)),
		logger:  logging.NewNopLogger(),
		metrics: metrics.NewNopMetrics(),
		timeout: 60 * time.Second,
		tick:    500 * time.Millisecond,
	}
	for _, src := range sources {
		d.sources[src.Name()] = src
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// WaitStable polls every known node until all views agree or the
// deadline passes.
//
// Stability requires, in a single poll cycle: every expected node answers
// its HA query, every answering node reports itself healthy, and every
// answering node's online set equals exactly the expected set. Extra
// members in any view reject stability; they must leave before the
// cluster is considered converged. Nodes outside the expected set are
// allowed to be unreachable, but one that answers anyway must agree with
// the others or stability is rejected.
//
// Parameters:
//   - ctx: Context for cancellation
//   - expected: Node names that must agree
//
// Returns:
//   - types.ClusterView: The final aggregate view, stable or not
//   - error: types.ErrStabilizeTimeout on deadline, or
//     types.ErrNoReachableNodes if no node ever answered
func (d *Detector) WaitStable(ctx context.Context, expected []string) (types.ClusterView, error) {
	start := time.Now()
	deadline := start.Add(d.timeout)
	d.logger.Info("waiting for stable HA state", "expected", expected, "timeout", d.timeout)

	var view types.ClusterView
	everReachable := false
	for {
		view = d.poll(ctx, expected)
		everReachable = everReachable || len(view.Reachable) > 0
		if view.Stable {
			elapsed := time.Since(start)
			d.metrics.ObserveStabilizeDuration(elapsed.Seconds())
			d.logger.Info("cluster reached stable HA state", "elapsed", elapsed)
			return view, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			d.metrics.IncStabilizeTimeout()
			if !everReachable {
				return view, types.ErrNoReachableNodes
			}
			return view, types.ErrStabilizeTimeout
		}

		wait := d.tick
		if remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return view, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// poll assembles one aggregate view across all known nodes.
func (d *Detector) poll(ctx context.Context, expected []string) types.ClusterView {
	view := types.ClusterView{
		Expected:  append([]string(nil), expected...),
		Snapshots: make(map[string]types.HAStatusSnapshot, len(d.sources)),
		Taken:     time.Now(),
	}

	want := append([]string(nil), expected...)
	sort.Strings(want)

	mustAnswer := make(map[string]bool, len(expected))
	for _, name := range expected {
		mustAnswer[name] = true
	}

	stable := true
	for _, name := range expected {
		if _, ok := d.sources[name]; !ok {
			stable = false
		}
	}

	reachableExpected := 0
	for name, src := range d.sources {
		snap, err := src.HAStatus(ctx)
		if err != nil {
			// A node outside the expected set is allowed to be down;
			// an expected node is not.
			if mustAnswer[name] {
				d.logger.Debug("node did not answer HA query", "node", name, "error", err)
				stable = false
			}
			continue
		}
		view.Reachable = append(view.Reachable, name)
		view.Snapshots[name] = snap
		if mustAnswer[name] {
			reachableExpected++
		}

		// Every answering node, expected or not, must see exactly the
		// expected member set.
		if !snap.Healthy || !equalSorted(snap.Online, want) {
			d.logger.Debug("node view not converged", "node", name, "online", snap.Online, "healthy", snap.Healthy)
			stable = false
		}
	}

	view.Stable = stable && reachableExpected == len(expected)
	return view
}

func equalSorted(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	sorted := append([]string(nil), got...)
	sort.Strings(sorted)
	for i := range sorted {
		if sorted[i] != want[i] {
			return false
		}
	}
	return true
}
