// Package vm provides a VictoriaMetrics-based implementation of the MetricsCollector interface.
//
// This package uses github.com/VictoriaMetrics/metrics for lightweight,
// high-performance Prometheus-compatible metrics collection.
//
// # Basic Usage
//
// Create a collector with the default prefix "stress":
//
//	collector := vm.New()
//	engine := scenario.NewEngine(controller, detector, nodes,
//	    scenario.WithEngineMetrics(collector),
//	)
//
// # Custom Prefix
//
// Use WithPrefix to customize the metric name prefix:
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//
// This produces metrics like:
//   - myapp_workload_ops_total{kind="update"}
//   - myapp_stabilize_duration_seconds
//
// # Exposing Metrics
//
// Use the Handler method to expose metrics via HTTP:
//
//	http.HandleFunc("/metrics", collector.Handler)
//	http.ListenAndServe(":8080", nil)
//
// Or use WritePrometheus to write metrics to a custom writer:
//
//	collector.WritePrometheus(w)
//
// # Metrics Provided
//
// Workload:
//   - {prefix}_workload_ops_total{kind} - Counter of workload operations
//   - {prefix}_workload_errors_total{kind} - Counter of workload errors
//   - {prefix}_workload_op_duration_seconds{kind} - Histogram of operation latencies
//
// Disturbances:
//   - {prefix}_disturbances_total{policy} - Counter of disturbance actions
//   - {prefix}_nodes_up - Gauge of nodes the engine believes up
//
// Stabilization:
//   - {prefix}_stabilize_duration_seconds - Histogram of stabilization waits
//   - {prefix}_stabilize_timeouts_total - Counter of stabilization timeouts
//
// Errors and validation:
//   - {prefix}_errors_total{class} - Counter of classified errors
//   - {prefix}_validation_pass_total - Counter of validation passes
//   - {prefix}_validation_failure_total - Counter of validation failures
//
// Scenarios:
//   - {prefix}_scenarios_completed_total{scenario} - Counter of completed runs
//   - {prefix}_scenarios_failed_total{scenario} - Counter of failed runs
//
// # Performance Notes
//
// Metrics without dynamic labels are pre-created at initialization using
// the NewXXX pattern; per-kind and per-scenario metrics use GetOrCreateXXX
// since their label values are not known up front.
//
// The metrics are registered with a dedicated Set that is registered
// globally, allowing standard Prometheus scraping.
package vm
