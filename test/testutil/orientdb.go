// Package testutil provides testing utilities for the stress harness.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// OrientDBContainer wraps a single-node OrientDB test container.
type OrientDBContainer struct {
	Container testcontainers.Container
	URL       string
	User      string
	Password  string
}

// OrientDBOptions configures the OrientDB container.
type OrientDBOptions struct {
	// Image is the OrientDB image to use. Defaults to "orientdb:3.2".
	Image string
	// RootPassword is the root account password. Defaults to "root".
	RootPassword string
}

// DefaultOrientDBOptions returns default options for the OrientDB container.
func DefaultOrientDBOptions() OrientDBOptions {
	return OrientDBOptions{
		Image:        "orientdb:3.2",
		RootPassword: "root",
	}
}

// StartOrientDB starts a single-node OrientDB container for testing.
//
// The caller owns the container and must call Terminate when done; tests
// that start their own container should register it with t.Cleanup.
//
// Parameters:
//   - ctx: Context for container operations
//   - opts: Optional configuration (nil uses defaults)
//
// Returns:
//   - *OrientDBContainer: Container with REST connection details
//   - error: Error if the container fails to start
func StartOrientDB(ctx context.Context, opts *OrientDBOptions) (*OrientDBContainer, error) {
	if opts == nil {
		defaultOpts := DefaultOrientDBOptions()
		opts = &defaultOpts
	}

	req := testcontainers.ContainerRequest{
		Image: opts.Image,
		Env: map[string]string{
			"ORIENTDB_ROOT_PASSWORD": opts.RootPassword,
		},
		ExposedPorts: []string{"2480/tcp"},
		WaitingFor: wait.ForHTTP("/listDatabases").
			WithPort("2480/tcp").
			WithStartupTimeout(2 * time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start OrientDB container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "2480/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	return &OrientDBContainer{
		Container: container,
		URL:       fmt.Sprintf("http://%s:%s", host, port.Port()),
		User:      "root",
		Password:  opts.RootPassword,
	}, nil
}

// Terminate stops and removes the container.
func (c *OrientDBContainer) Terminate(ctx context.Context) error {
	return c.Container.Terminate(ctx)
}
