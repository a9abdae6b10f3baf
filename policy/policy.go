// Package policy provides the built-in disturbance policies.
//
// A policy decides which node to disturb next and how: graceful stop or
// kill, how long the node stays down, and whether its data directory is
// wiped before restart. Policies are deterministic for a given seed, so
// a scenario can be replayed from the seed in its result record.
//
// Policy selection by name happens in the caller; Available lists the
// selectable policies with their descriptions.
package policy

import (
	"math/rand"
	"time"
)

// Info describes one selectable policy.
type Info struct {
	// Name is the scenario name the policy runs under.
	Name string

	// Description is a one-line human description.
	Description string
}

// Policy names.
const (
	BasicStartupName         = "basic-startup"
	RandomRestartName        = "random-restart"
	AlternatingStopStartName = "alternating-stop-start"
	RollingRestartName       = "rolling-restart"
	RandomKillName           = "random-kill"
)

// Available returns the built-in policies in their canonical run order.
func Available() []Info {
	return []Info{
		{BasicStartupName, "start the cluster and run undisturbed for the scenario length"},
		{RandomRestartName, "restart a random node at intervals"},
		{AlternatingStopStartName, "stop a node, restabilize without it, then start it again"},
		{RollingRestartName, "restart every node in sequence at intervals"},
		{RandomKillName, "kill a random node at intervals, then restart it"},
	}
}

// base carries the state shared by the restarting policies.
type base struct {
	deadTime time.Duration
	current  string
	rng      *rand.Rand
}

func newBase(seed int64, deadTime time.Duration) base {
	return base{
		deadTime: deadTime,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// nextOf returns the node after current in cluster order, wrapping at the
// end. An unknown current lands on the first node.
func nextOf(nodes []string, current string) string {
	for i, n := range nodes {
		if n == current {
			return nodes[(i+1)%len(nodes)]
		}
	}
	return nodes[0]
}

// randomNot returns a random node other than current when possible.
func (b *base) randomNot(nodes []string) string {
	if len(nodes) == 1 {
		return nodes[0]
	}
	for {
		pick := nodes[b.rng.Intn(len(nodes))]
		if pick != b.current {
			return pick
		}
	}
}

// prime initialises the cursor so the first sequential pick is the first
// node.
func (b *base) prime(nodes []string) {
	if b.current == "" {
		b.current = nodes[len(nodes)-1]
	}
}
