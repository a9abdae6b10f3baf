package orient

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/indexity-io/orientdb-stress/internal/logging"
	"github.com/indexity-io/orientdb-stress/types"
)

// ServerPool groups the cluster's servers and provides the selection
// strategies used by disturbance policies and the workload.
//
// Selection over running servers is randomized through a seeded source so
// runs are reproducible. All methods are safe for concurrent use.
type ServerPool struct {
	servers []*Server
	logger  types.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// PoolOption configures a ServerPool.
type PoolOption func(*ServerPool)

// WithPoolLogger sets the pool's logger.
//
// Parameters:
//   - logger: Logger instance (default: no-op logger)
//
// Returns:
//   - PoolOption: Configuration option
func WithPoolLogger(logger types.Logger) PoolOption {
	return func(p *ServerPool) {
		p.logger = logger
	}
}

// WithPoolSeed seeds the pool's random source for reproducible selection.
//
// Parameters:
//   - seed: Random seed
//
// Returns:
//   - PoolOption: Configuration option
func WithPoolSeed(seed int64) PoolOption {
	return func(p *ServerPool) {
		p.rng = rand.New(rand.NewSource(seed))
	}
}

// NewServerPool creates a pool over the given servers.
//
// Parameters:
//   - servers: The cluster's server clients, in node order
//   - opts: Optional configuration options
//
// Returns:
//   - *ServerPool: The pool
func NewServerPool(servers []*Server, opts ...PoolOption) *ServerPool {
	p := &ServerPool{
		servers: servers,
		logger:  logging.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.rng == nil {
		p.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return p
}

// Size returns the number of servers in the pool.
func (p *ServerPool) Size() int {
	return len(p.servers)
}

// Servers returns all servers in node order.
func (p *ServerPool) Servers() []*Server {
	return p.servers
}

// Names returns all node names in node order.
func (p *ServerPool) Names() []string {
	names := make([]string, len(p.servers))
	for i, srv := range p.servers {
		names[i] = srv.Name()
	}
	return names
}

// Server returns the server with the given name, or nil.
func (p *ServerPool) Server(name string) *Server {
	for _, srv := range p.servers {
		if srv.Name() == name {
			return srv
		}
	}
	return nil
}

// RunningServers returns the servers currently believed up, in node order.
func (p *ServerPool) RunningServers() []*Server {
	running := make([]*Server, 0, len(p.servers))
	for _, srv := range p.servers {
		if srv.Running() {
			running = append(running, srv)
		}
	}
	return running
}

// RunningNames returns the names of servers currently believed up.
func (p *ServerPool) RunningNames() []string {
	running := p.RunningServers()
	names := make([]string, len(running))
	for i, srv := range running {
		names[i] = srv.Name()
	}
	return names
}

// First returns the first running server.
//
// Returns:
//   - *Server: The server
//   - error: ErrNoRunningNodes if every node is down
func (p *ServerPool) First() (*Server, error) {
	running := p.RunningServers()
	if len(running) == 0 {
		return nil, types.ErrNoRunningNodes
	}
	return running[0], nil
}

// Last returns the last running server.
//
// Returns:
//   - *Server: The server
//   - error: ErrNoRunningNodes if every node is down
func (p *ServerPool) Last() (*Server, error) {
	running := p.RunningServers()
	if len(running) == 0 {
		return nil, types.ErrNoRunningNodes
	}
	return running[len(running)-1], nil
}

// Random returns a uniformly chosen running server.
//
// Returns:
//   - *Server: The server
//   - error: ErrNoRunningNodes if every node is down
func (p *ServerPool) Random() (*Server, error) {
	running := p.RunningServers()
	if len(running) == 0 {
		return nil, types.ErrNoRunningNodes
	}
	p.mu.Lock()
	idx := p.rng.Intn(len(running))
	p.mu.Unlock()
	return running[idx], nil
}

// RandomNot returns a running server other than the named one, when more
// than one is running.
//
// Parameters:
//   - name: Node name to avoid
//
// Returns:
//   - *Server: The server
//   - error: ErrNoRunningNodes if every node is down
func (p *ServerPool) RandomNot(name string) (*Server, error) {
	for {
		srv, err := p.Random()
		if err != nil {
			return nil, err
		}
		if srv.Name() != name || len(p.RunningServers()) == 1 {
			return srv, nil
		}
	}
}

// Next returns the running server after the named one, wrapping around.
// If the named server is not running, the first running server is returned.
//
// Parameters:
//   - name: Current node name
//
// Returns:
//   - *Server: The next server
//   - error: ErrNoRunningNodes if every node is down
func (p *ServerPool) Next(name string) (*Server, error) {
	running := p.RunningServers()
	if len(running) == 0 {
		return nil, types.ErrNoRunningNodes
	}
	for i, srv := range running {
		if srv.Name() == name {
			return running[(i+1)%len(running)], nil
		}
	}
	return running[0], nil
}

// WaitAvailable blocks until every running server answers REST calls.
//
// Each server is polled in turn with a shared deadline, sleeping 500ms
// between attempts.
//
// Parameters:
//   - ctx: Context for cancellation
//   - timeout: Overall deadline for the whole pool
//
// Returns:
//   - error: ErrStabilizeTimeout if the pool did not become available
func (p *ServerPool) WaitAvailable(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for _, srv := range p.RunningServers() {
		for !srv.Available(ctx) {
			if time.Now().After(deadline) {
				return types.ErrStabilizeTimeout
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
		}
	}
	p.logger.Info("server pool has reached active state")
	return nil
}
