package orient

import (
	"testing"

	"github.com/indexity-io/orientdb-stress/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(names ...string) *ServerPool {
	servers := make([]*Server, len(names))
	for i, name := range names {
		servers[i] = NewServer(name, "http://"+name+":2480", "root", "root")
		servers[i].SetRunning(true)
	}
	return NewServerPool(servers, WithPoolSeed(42))
}

func TestPoolNames(t *testing.T) {
	pool := newTestPool("odb1", "odb2", "odb3")

	assert.Equal(t, 3, pool.Size())
	assert.Equal(t, []string{"odb1", "odb2", "odb3"}, pool.Names())
	assert.Equal(t, []string{"odb1", "odb2", "odb3"}, pool.RunningNames())
	require.NotNil(t, pool.Server("odb2"))
	assert.Nil(t, pool.Server("odb9"))
}

func TestPoolRunningExcludesStopped(t *testing.T) {
	pool := newTestPool("odb1", "odb2", "odb3")
	pool.Server("odb2").SetRunning(false)

	assert.Equal(t, []string{"odb1", "odb3"}, pool.RunningNames())

	first, err := pool.First()
	require.NoError(t, err)
	assert.Equal(t, "odb1", first.Name())

	last, err := pool.Last()
	require.NoError(t, err)
	assert.Equal(t, "odb3", last.Name())
}

func TestPoolNextWrapsAround(t *testing.T) {
	pool := newTestPool("odb1", "odb2", "odb3")

	next, err := pool.Next("odb3")
	require.NoError(t, err)
	assert.Equal(t, "odb1", next.Name())

	next, err = pool.Next("odb1")
	require.NoError(t, err)
	assert.Equal(t, "odb2", next.Name())

	// Unknown current falls back to the first running server.
	next, err = pool.Next("odb9")
	require.NoError(t, err)
	assert.Equal(t, "odb1", next.Name())
}

func TestPoolNextSkipsStopped(t *testing.T) {
	pool := newTestPool("odb1", "odb2", "odb3")
	pool.Server("odb2").SetRunning(false)

	next, err := pool.Next("odb1")
	require.NoError(t, err)
	assert.Equal(t, "odb3", next.Name())
}

func TestPoolRandomNotAvoidsNamed(t *testing.T) {
	pool := newTestPool("odb1", "odb2", "odb3")

	for i := 0; i < 20; i++ {
		srv, err := pool.RandomNot("odb2")
		require.NoError(t, err)
		assert.NotEqual(t, "odb2", srv.Name())
	}
}

func TestPoolRandomNotWithSingleRunning(t *testing.T) {
	pool := newTestPool("odb1", "odb2")
	pool.Server("odb1").SetRunning(false)

	srv, err := pool.RandomNot("odb2")
	require.NoError(t, err)
	assert.Equal(t, "odb2", srv.Name())
}

func TestPoolSeededRandomIsReproducible(t *testing.T) {
	pick := func() []string {
		pool := newTestPool("odb1", "odb2", "odb3")
		var names []string
		for i := 0; i < 10; i++ {
			srv, err := pool.Random()
			require.NoError(t, err)
			names = append(names, srv.Name())
		}
		return names
	}

	assert.Equal(t, pick(), pick())
}

func TestPoolNoRunningNodes(t *testing.T) {
	pool := newTestPool("odb1", "odb2")
	pool.Server("odb1").SetRunning(false)
	pool.Server("odb2").SetRunning(false)

	_, err := pool.Random()
	assert.ErrorIs(t, err, types.ErrNoRunningNodes)

	_, err = pool.First()
	assert.ErrorIs(t, err, types.ErrNoRunningNodes)

	_, err = pool.Next("odb1")
	assert.ErrorIs(t, err, types.ErrNoRunningNodes)
}
