// Package testutil provides test utilities for the stress harness.
//
// This package provides helpers for integration tests that need real
// backing services, plus a capturing metrics collector for unit tests.
//
// # Integration Test Helpers
//
//   - StartOrientDB: Starts a single-node OrientDB test container (requires Docker)
//   - StartEmbeddedNATS: Starts an embedded NATS server with JetStream enabled
//
// # Capturing Collector
//
// TestMetricsCollector records every metrics call for assertion:
//
//	collector := testutil.NewTestMetricsCollector()
//	gen := workload.NewGenerator(mgr, workload.WithGeneratorMetrics(collector))
//	// ... run the workload ...
//	require.Positive(t, collector.TotalWorkloadOps())
package testutil
