// Package cluster controls the docker compose deployment of the cluster
// under test.
//
// Compose shells out to "docker compose" for node lifecycle operations and
// wipes per-node data directories for reset-to-resync disturbances.
// LogSource attaches follow streams to node containers for the log monitor.
package cluster

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	stress "github.com/indexity-io/orientdb-stress"
	"github.com/indexity-io/orientdb-stress/internal/logging"
	"github.com/indexity-io/orientdb-stress/types"
)

// Compose is a ClusterController backed by docker compose. Node names are
// compose service names.
type Compose struct {
	file    string
	dir     string
	dataDir string
	logger  types.Logger

	// runCmd is replaceable in tests.
	runCmd func(ctx context.Context, args ...string) error
}

// Compile-time assertion that Compose implements stress.ClusterController.
var _ stress.ClusterController = (*Compose)(nil)

// ComposeOption configures a Compose controller.
type ComposeOption func(*Compose)

// WithProjectDir sets the working directory for docker compose invocations.
//
// Parameters:
//   - dir: Directory containing the compose project
//
// Returns:
//   - ComposeOption: Configuration option
func WithProjectDir(dir string) ComposeOption {
	return func(c *Compose) {
		c.dir = dir
	}
}

// WithComposeLogger sets the controller's logger.
//
// Parameters:
//   - logger: Logger instance (default: no-op logger)
//
// Returns:
//   - ComposeOption: Configuration option
func WithComposeLogger(logger types.Logger) ComposeOption {
	return func(c *Compose) {
		c.logger = logger
	}
}

// NewCompose creates a docker compose controller.
//
// Parameters:
//   - composeFile: Compose file describing the cluster
//   - dataDir: Host directory holding per-node data volumes
//   - opts: Optional configuration options
//
// Returns:
//   - *Compose: The controller
func NewCompose(composeFile, dataDir string, opts ...ComposeOption) *Compose {
	c := &Compose{
		file:    composeFile,
		dataDir: dataDir,
		logger:  logging.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.runCmd == nil {
		c.runCmd = c.dockerCompose
	}

	return c
}

func (c *Compose) dockerCompose(ctx context.Context, args ...string) error {
	full := append([]string{"compose", "-f", c.file}, args...)
	cmd := exec.CommandContext(ctx, "docker", full...)
	cmd.Dir = c.dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("stress: docker compose %v failed: %w: %s", args, err, out)
	}
	return nil
}

// StartAll brings up every service in the compose file.
func (c *Compose) StartAll(ctx context.Context) error {
	c.logger.Info("starting all nodes")
	return c.runCmd(ctx, "up", "-d")
}

// Start brings up one node.
func (c *Compose) Start(ctx context.Context, node string) error {
	c.logger.Info("starting node", "node", node)
	return c.runCmd(ctx, "up", "-d", node)
}

// StopGraceful performs an orderly shutdown of one node.
func (c *Compose) StopGraceful(ctx context.Context, node string) error {
	c.logger.Info("stopping node", "node", node)
	return c.runCmd(ctx, "stop", node)
}

// StopKill delivers SIGKILL to one node's container.
func (c *Compose) StopKill(ctx context.Context, node string) error {
	c.logger.Info("killing node", "node", node)
	return c.runCmd(ctx, "kill", "-s", "SIGKILL", node)
}

// ResetData wipes one node's data directory. The node must already be
// stopped; on next start it re-syncs its databases from the cluster.
func (c *Compose) ResetData(_ context.Context, node string) error {
	dir := filepath.Join(c.dataDir, "databases", node)
	c.logger.Info("cleaning data directory", "node", node, "dir", dir)
	if err := os.RemoveAll(dir); err != nil {
		return &types.NodeError{Node: node, Operation: "reset data", Cause: err}
	}
	return nil
}

// RemoveAll stops and removes every container, discarding state.
func (c *Compose) RemoveAll(ctx context.Context) error {
	c.logger.Info("removing all nodes")
	return c.runCmd(ctx, "down")
}
