package cluster

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecordingCompose(t *testing.T) (*Compose, *[][]string) {
	t.Helper()
	var calls [][]string
	c := NewCompose("docker-compose.yml", t.TempDir())
	c.runCmd = func(_ context.Context, args ...string) error {
		calls = append(calls, args)
		return nil
	}
	return c, &calls
}

func TestComposeCommands(t *testing.T) {
	c, calls := newRecordingCompose(t)
	ctx := context.Background()

	require.NoError(t, c.StartAll(ctx))
	require.NoError(t, c.Start(ctx, "odb2"))
	require.NoError(t, c.StopGraceful(ctx, "odb2"))
	require.NoError(t, c.StopKill(ctx, "odb3"))
	require.NoError(t, c.RemoveAll(ctx))

	assert.Equal(t, [][]string{
		{"up", "-d"},
		{"up", "-d", "odb2"},
		{"stop", "odb2"},
		{"kill", "-s", "SIGKILL", "odb3"},
		{"down"},
	}, *calls)
}

func TestComposeResetDataRemovesNodeDir(t *testing.T) {
	dataDir := t.TempDir()
	nodeDir := filepath.Join(dataDir, "databases", "odb1")
	require.NoError(t, os.MkdirAll(filepath.Join(nodeDir, "stress"), 0o755))
	otherDir := filepath.Join(dataDir, "databases", "odb2")
	require.NoError(t, os.MkdirAll(otherDir, 0o755))

	c := NewCompose("docker-compose.yml", dataDir)
	require.NoError(t, c.ResetData(context.Background(), "odb1"))

	_, err := os.Stat(nodeDir)
	assert.True(t, os.IsNotExist(err))
	// Other nodes' data is untouched.
	_, err = os.Stat(otherDir)
	assert.NoError(t, err)
}

func TestComposeResetDataMissingDirIsNoError(t *testing.T) {
	c := NewCompose("docker-compose.yml", t.TempDir())
	assert.NoError(t, c.ResetData(context.Background(), "odb9"))
}
