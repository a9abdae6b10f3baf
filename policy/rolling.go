package policy

import (
	"time"

	"github.com/indexity-io/orientdb-stress/types"
)

// RollingRestart restarts nodes one after another in cluster order,
// wrapping around for as long as the scenario runs. The cluster must
// restabilize between each restart, which is exactly the maintenance
// pattern of a rolling upgrade.
type RollingRestart struct {
	base
}

// NewRollingRestart creates a RollingRestart policy.
//
// Parameters:
//   - seed: Random seed, kept for interface symmetry
//   - deadTime: How long a node is held down before restart
//
// Returns:
//   - *RollingRestart: The policy
func NewRollingRestart(seed int64, deadTime time.Duration) *RollingRestart {
	return &RollingRestart{base: newBase(seed, deadTime)}
}

// Name returns the policy's scenario name.
func (p *RollingRestart) Name() string {
	return RollingRestartName
}

// Description returns a one-line description.
func (p *RollingRestart) Description() string {
	return "restart every node in sequence at intervals"
}

// NextAction advances to the next node in cluster order.
func (p *RollingRestart) NextAction(nodes []string, _ time.Duration) (types.Action, bool) {
	if len(nodes) == 0 {
		return types.Action{}, false
	}
	p.prime(nodes)
	p.current = nextOf(nodes, p.current)
	return types.Action{
		Node:     p.current,
		Kind:     types.ActionRestart,
		Stop:     types.StopGraceful,
		DeadTime: p.deadTime,
	}, true
}
