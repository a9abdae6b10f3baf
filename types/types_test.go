package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &NodeError{
		Node:      "odb1",
		Operation: "stop",
		Cause:     cause,
	}

	assert.Contains(t, err.Error(), "odb1")
	assert.Contains(t, err.Error(), "stop")
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, errors.Is(err, cause))
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseInit, "INIT"},
		{PhaseStartingCluster, "STARTING_CLUSTER"},
		{PhaseWaitingStable, "WAITING_STABLE"},
		{PhaseWorkloadStarting, "WORKLOAD_STARTING"},
		{PhaseRunning, "RUNNING"},
		{PhaseDisturb, "DISTURB"},
		{PhaseDeadTime, "DEAD_TIME"},
		{PhaseRestore, "RESTORE"},
		{PhaseValidate, "VALIDATE"},
		{PhaseStopping, "STOPPING"},
		{PhaseCompleted, "COMPLETED"},
		{PhaseFailed, "FAILED"},
		{Phase(200), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.phase.String())
	}
}

func TestClassificationString(t *testing.T) {
	assert.Equal(t, "UNKNOWN", ClassUnknown.String())
	assert.Equal(t, "KNOWN", ClassKnown.String())
	assert.Equal(t, "SUPPRESSED", ClassSuppressed.String())
}

func TestParseIndexKind(t *testing.T) {
	kind, err := ParseIndexKind("UNIQUE")
	require.NoError(t, err)
	assert.Equal(t, IndexUnique, kind)

	kind, err = ParseIndexKind("NOT_UNIQUE")
	require.NoError(t, err)
	assert.Equal(t, IndexNotUnique, kind)

	kind, err = ParseIndexKind("FULL_TEXT")
	require.NoError(t, err)
	assert.Equal(t, IndexFullText, kind)

	_, err = ParseIndexKind("BOGUS")
	require.Error(t, err)
}

func TestWorkloadRecordValue(t *testing.T) {
	rec := WorkloadRecord{ID: 7, Unique: 1, NotUnique: 2, FullText: 3}

	assert.Equal(t, int64(1), rec.Value(IndexUnique))
	assert.Equal(t, int64(2), rec.Value(IndexNotUnique))
	assert.Equal(t, int64(3), rec.Value(IndexFullText))
}

func TestStopModeString(t *testing.T) {
	assert.Equal(t, "stop", StopGraceful.String())
	assert.Equal(t, "kill", StopKill.String())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "COMPLETED", OutcomeCompleted.String())
	assert.Equal(t, "FAILED", OutcomeFailed.String())
}
