package integration_test

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/indexity-io/orientdb-stress/orient"
	"github.com/indexity-io/orientdb-stress/test/testutil"
)

// shared holds the OrientDB container all integration tests run against.
// Starting one container per test would dominate the suite's runtime.
var shared struct {
	container *testutil.OrientDBContainer
}

// TestMain sets up the shared test infrastructure.
func TestMain(m *testing.M) {
	flag.Parse()

	if testing.Short() {
		return
	}

	// Allow skipping container setup for CI environments without Docker.
	if os.Getenv("SKIP_INTEGRATION_TESTS") == "1" {
		fmt.Println("Skipping integration tests (SKIP_INTEGRATION_TESTS=1)")

		return
	}

	ctx := context.Background()
	container, err := testutil.StartOrientDB(ctx, nil)
	if err != nil {
		fmt.Printf("Failed to start OrientDB container: %v\n", err)

		return
	}
	shared.container = container

	_ = m.Run()

	_ = container.Terminate(ctx)
}

// sharedServer returns a REST client for the shared container.
func sharedServer(t *testing.T) *orient.Server {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if shared.container == nil {
		t.Skip("OrientDB container not available (run with -short=false and Docker)")
	}

	srv := orient.NewServer("odb1", shared.container.URL,
		shared.container.User, shared.container.Password)
	// The container is already up; mark it so pool dispatch routes to it.
	srv.SetRunning(true)

	return srv
}

// uniqueDatabase creates a Database handle with a name unique to the test,
// so tests never see each other's data.
func uniqueDatabase(t *testing.T, suffix string) *orient.Database {
	t.Helper()

	srv := sharedServer(t)
	pool := orient.NewServerPool([]*orient.Server{srv})
	name := fmt.Sprintf("stress_it_%s_%d", suffix, time.Now().UnixNano())

	return orient.NewDatabase(pool, name)
}
