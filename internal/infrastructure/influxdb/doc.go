// Package influxdb records gateway time-series telemetry.
//
// It wraps the official influxdb-client-go v2 library with the
// gateway's patterns for connection management and non-blocking
// batched writes. The gateway records:
//
//   - Bus telegram traffic per group address
//   - Entity state transitions
//   - Reconcile operation outcomes and latencies
//
// Telemetry is optional; when disabled in config the rest of the
// gateway runs with a nil client and skips all writes. All methods are
// safe for concurrent use, and write errors surface asynchronously via
// SetOnError.
package influxdb
