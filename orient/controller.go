package orient

import (
	"context"

	stress "github.com/indexity-io/orientdb-stress"
)

// TrackingController decorates a ClusterController and keeps the pool's
// running flags in sync with lifecycle actions. Without it the pool never
// learns which nodes are up: running-only dispatch would see an empty
// pool and every SQL call would fail with ErrNoRunningNodes.
//
// Flags are updated only after the wrapped call succeeds; a failed stop
// leaves the node's state as it was.
type TrackingController struct {
	inner stress.ClusterController
	pool  *ServerPool
}

// Compile-time assertion that TrackingController implements
// stress.ClusterController.
var _ stress.ClusterController = (*TrackingController)(nil)

// NewTrackingController wraps a controller so that every lifecycle action
// is mirrored into the pool's running flags.
//
// Parameters:
//   - inner: The controller performing the actual actions
//   - pool: The pool whose flags track node state
//
// Returns:
//   - *TrackingController: The wrapped controller
func NewTrackingController(inner stress.ClusterController, pool *ServerPool) *TrackingController {
	return &TrackingController{inner: inner, pool: pool}
}

// StartAll brings up every node and marks them all running.
func (c *TrackingController) StartAll(ctx context.Context) error {
	if err := c.inner.StartAll(ctx); err != nil {
		return err
	}
	for _, srv := range c.pool.Servers() {
		srv.SetRunning(true)
	}
	return nil
}

// Start brings up one node and marks it running.
func (c *TrackingController) Start(ctx context.Context, node string) error {
	if err := c.inner.Start(ctx, node); err != nil {
		return err
	}
	c.setRunning(node, true)
	return nil
}

// StopGraceful shuts down one node and marks it not running.
func (c *TrackingController) StopGraceful(ctx context.Context, node string) error {
	if err := c.inner.StopGraceful(ctx, node); err != nil {
		return err
	}
	c.setRunning(node, false)
	return nil
}

// StopKill kills one node and marks it not running.
func (c *TrackingController) StopKill(ctx context.Context, node string) error {
	if err := c.inner.StopKill(ctx, node); err != nil {
		return err
	}
	c.setRunning(node, false)
	return nil
}

// ResetData wipes one node's data directory.
func (c *TrackingController) ResetData(ctx context.Context, node string) error {
	return c.inner.ResetData(ctx, node)
}

// RemoveAll tears down the cluster and marks every node not running.
func (c *TrackingController) RemoveAll(ctx context.Context) error {
	if err := c.inner.RemoveAll(ctx); err != nil {
		return err
	}
	for _, srv := range c.pool.Servers() {
		srv.SetRunning(false)
	}
	return nil
}

func (c *TrackingController) setRunning(node string, up bool) {
	if srv := c.pool.Server(node); srv != nil {
		srv.SetRunning(up)
	}
}
