package policy

import (
	"time"

	"github.com/indexity-io/orientdb-stress/types"
)

// AlternatingStopStart alternates between stopping a node and starting
// it again, with a full stabilization and validation cycle in between.
// The cluster must converge to the reduced member set while the node is
// down, then accept it back.
type AlternatingStopStart struct {
	base
	kill      bool
	reset     bool
	stopPhase bool
}

// AlternatingOption configures an AlternatingStopStart policy.
type AlternatingOption func(*AlternatingStopStart)

// WithAlternatingKill kills nodes instead of stopping them gracefully.
//
// Returns:
//   - AlternatingOption: Configuration option
func WithAlternatingKill(kill bool) AlternatingOption {
	return func(p *AlternatingStopStart) {
		p.kill = kill
	}
}

// WithAlternatingReset wipes the node's data directory before it is
// started again, forcing a full re-sync.
//
// Returns:
//   - AlternatingOption: Configuration option
func WithAlternatingReset(reset bool) AlternatingOption {
	return func(p *AlternatingStopStart) {
		p.reset = reset
	}
}

// NewAlternatingStopStart creates an AlternatingStopStart policy.
//
// Parameters:
//   - seed: Random seed, kept for interface symmetry
//   - opts: Optional configuration options
//
// Returns:
//   - *AlternatingStopStart: The policy
func NewAlternatingStopStart(seed int64, opts ...AlternatingOption) *AlternatingStopStart {
	p := &AlternatingStopStart{base: newBase(seed, 0)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the policy's scenario name.
func (p *AlternatingStopStart) Name() string {
	return AlternatingStopStartName
}

// Description returns a one-line description.
func (p *AlternatingStopStart) Description() string {
	return "stop a node, restabilize without it, then start it again"
}

// NextAction alternates stop and start on consecutive cycles. The stop
// targets the next node in cluster order; the start targets the node
// stopped by the previous cycle.
func (p *AlternatingStopStart) NextAction(nodes []string, _ time.Duration) (types.Action, bool) {
	if len(nodes) == 0 {
		return types.Action{}, false
	}
	p.prime(nodes)

	if p.stopPhase {
		// The node from the previous cycle comes back.
		p.stopPhase = false
		return types.Action{
			Node:  p.current,
			Kind:  types.ActionStart,
			Reset: p.reset,
		}, true
	}

	p.stopPhase = true
	p.current = nextOf(nodes, p.current)
	stop := types.StopGraceful
	if p.kill {
		stop = types.StopKill
	}
	return types.Action{
		Node: p.current,
		Kind: types.ActionStop,
		Stop: stop,
	}, true
}
