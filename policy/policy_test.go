package policy

import (
	"testing"
	"time"

	"github.com/indexity-io/orientdb-stress/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNodes = []string{"odb1", "odb2", "odb3"}

func TestBasicStartupHasNoActions(t *testing.T) {
	p := NewBasicStartup()
	_, ok := p.NextAction(testNodes, 0)
	assert.False(t, ok)
	assert.Equal(t, "basic-startup", p.Name())
}

func TestRollingRestartCyclesInClusterOrder(t *testing.T) {
	p := NewRollingRestart(1, 2*time.Second)

	var picked []string
	for i := 0; i < 6; i++ {
		action, ok := p.NextAction(testNodes, 0)
		require.True(t, ok)
		assert.Equal(t, types.ActionRestart, action.Kind)
		assert.Equal(t, types.StopGraceful, action.Stop)
		assert.Equal(t, 2*time.Second, action.DeadTime)
		picked = append(picked, action.Node)
	}
	assert.Equal(t, []string{"odb1", "odb2", "odb3", "odb1", "odb2", "odb3"}, picked)
}

func TestRandomRestartNeverRepeatsANode(t *testing.T) {
	p := NewRandomRestart(42, 0)

	previous := ""
	for i := 0; i < 50; i++ {
		action, ok := p.NextAction(testNodes, 0)
		require.True(t, ok)
		assert.Equal(t, types.ActionRestart, action.Kind)
		assert.NotEqual(t, previous, action.Node)
		assert.Contains(t, testNodes, action.Node)
		previous = action.Node
	}
}

func TestRandomRestartIsReproducible(t *testing.T) {
	a := NewRandomRestart(7, 0)
	b := NewRandomRestart(7, 0)
	for i := 0; i < 20; i++ {
		actionA, _ := a.NextAction(testNodes, 0)
		actionB, _ := b.NextAction(testNodes, 0)
		assert.Equal(t, actionA, actionB)
	}
}

func TestRandomKillDeliversKills(t *testing.T) {
	p := NewRandomKill(3, time.Second)
	action, ok := p.NextAction(testNodes, 0)
	require.True(t, ok)
	assert.Equal(t, types.ActionRestart, action.Kind)
	assert.Equal(t, types.StopKill, action.Stop)
	assert.Equal(t, time.Second, action.DeadTime)
}

func TestRandomRestartSingleNodeCluster(t *testing.T) {
	p := NewRandomRestart(1, 0)
	one := []string{"odb1"}
	for i := 0; i < 3; i++ {
		action, ok := p.NextAction(one, 0)
		require.True(t, ok)
		assert.Equal(t, "odb1", action.Node)
	}
}

func TestAlternatingStopStartAlternates(t *testing.T) {
	p := NewAlternatingStopStart(1)

	stop1, ok := p.NextAction(testNodes, 0)
	require.True(t, ok)
	assert.Equal(t, types.ActionStop, stop1.Kind)
	assert.Equal(t, "odb1", stop1.Node)
	assert.Equal(t, types.StopGraceful, stop1.Stop)

	start1, ok := p.NextAction(testNodes, 0)
	require.True(t, ok)
	assert.Equal(t, types.ActionStart, start1.Kind)
	assert.Equal(t, "odb1", start1.Node)
	assert.False(t, start1.Reset)

	stop2, ok := p.NextAction(testNodes, 0)
	require.True(t, ok)
	assert.Equal(t, types.ActionStop, stop2.Kind)
	assert.Equal(t, "odb2", stop2.Node)
}

func TestAlternatingStopStartKillAndReset(t *testing.T) {
	p := NewAlternatingStopStart(1,
		WithAlternatingKill(true),
		WithAlternatingReset(true),
	)

	stop, ok := p.NextAction(testNodes, 0)
	require.True(t, ok)
	assert.Equal(t, types.StopKill, stop.Stop)

	start, ok := p.NextAction(testNodes, 0)
	require.True(t, ok)
	assert.Equal(t, types.ActionStart, start.Kind)
	assert.True(t, start.Reset)
}

func TestAvailableListsAllPolicies(t *testing.T) {
	infos := Available()
	require.Len(t, infos, 5)

	var names []string
	for _, info := range infos {
		names = append(names, info.Name)
		assert.NotEmpty(t, info.Description)
	}
	assert.Equal(t, []string{
		BasicStartupName,
		RandomRestartName,
		AlternatingStopStartName,
		RollingRestartName,
		RandomKillName,
	}, names)
}
