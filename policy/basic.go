package policy

import (
	"time"

	"github.com/indexity-io/orientdb-stress/types"
)

// BasicStartup never disturbs the cluster. The scenario exercises
// startup, stabilization, workload and shutdown only.
type BasicStartup struct{}

// NewBasicStartup creates a BasicStartup policy.
//
// Returns:
//   - *BasicStartup: The policy
func NewBasicStartup() *BasicStartup {
	return &BasicStartup{}
}

// Name returns the policy's scenario name.
func (p *BasicStartup) Name() string {
	return BasicStartupName
}

// Description returns a one-line description.
func (p *BasicStartup) Description() string {
	return "start the cluster and run undisturbed for the scenario length"
}

// NextAction always reports no action. The engine falls through to
// validation on every cycle.
func (p *BasicStartup) NextAction([]string, time.Duration) (types.Action, bool) {
	return types.Action{}, false
}
