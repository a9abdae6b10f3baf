package policy

import (
	"time"

	"github.com/indexity-io/orientdb-stress/types"
)

// RandomRestart restarts a random node each cycle, never the same node
// twice in a row.
type RandomRestart struct {
	base
}

// NewRandomRestart creates a RandomRestart policy.
//
// Parameters:
//   - seed: Random seed for node selection
//   - deadTime: How long a node is held down before restart
//
// Returns:
//   - *RandomRestart: The policy
func NewRandomRestart(seed int64, deadTime time.Duration) *RandomRestart {
	return &RandomRestart{base: newBase(seed, deadTime)}
}

// Name returns the policy's scenario name.
func (p *RandomRestart) Name() string {
	return RandomRestartName
}

// Description returns a one-line description.
func (p *RandomRestart) Description() string {
	return "restart a random node at intervals"
}

// NextAction picks a random node other than the last one disturbed.
func (p *RandomRestart) NextAction(nodes []string, _ time.Duration) (types.Action, bool) {
	if len(nodes) == 0 {
		return types.Action{}, false
	}
	p.current = p.randomNot(nodes)
	return types.Action{
		Node:     p.current,
		Kind:     types.ActionRestart,
		Stop:     types.StopGraceful,
		DeadTime: p.deadTime,
	}, true
}

// RandomKill is RandomRestart with an unclean kill instead of a graceful
// stop. It exercises crash recovery rather than orderly handoff.
type RandomKill struct {
	base
}

// NewRandomKill creates a RandomKill policy.
//
// Parameters:
//   - seed: Random seed for node selection
//   - deadTime: How long a node is held down before restart
//
// Returns:
//   - *RandomKill: The policy
func NewRandomKill(seed int64, deadTime time.Duration) *RandomKill {
	return &RandomKill{base: newBase(seed, deadTime)}
}

// Name returns the policy's scenario name.
func (p *RandomKill) Name() string {
	return RandomKillName
}

// Description returns a one-line description.
func (p *RandomKill) Description() string {
	return "kill a random node at intervals, then restart it"
}

// NextAction picks a random node other than the last one disturbed.
func (p *RandomKill) NextAction(nodes []string, _ time.Duration) (types.Action, bool) {
	if len(nodes) == 0 {
		return types.Action{}, false
	}
	p.current = p.randomNot(nodes)
	return types.Action{
		Node:     p.current,
		Kind:     types.ActionRestart,
		Stop:     types.StopKill,
		DeadTime: p.deadTime,
	}, true
}
