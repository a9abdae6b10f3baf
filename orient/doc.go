// Package orient implements the OrientDB REST client used by the harness.
//
// Server wraps one node's REST endpoint with basic-auth JSON calls and HA
// status parsing. ServerPool groups the cluster's servers and provides the
// selection strategies the disturbance policies and workload use (first,
// last, random, next). Database binds a pool to one database for SQL
// commands, and SchemaManager installs the workload schema idempotently.
//
// All blocking calls accept a context.Context; REST failures are reported
// as *RESTError so callers can distinguish transient unavailability from
// genuine faults.
package orient
