// Package entity implements the gateway's entity configuration store
// with live reconciliation.
//
// User-authored entity definitions (switches, lights) are validated
// against a per-platform schema, persisted to SQLite keyed by a
// generated unique identifier, and mirrored into live runtime objects
// through a lifecycle manager. The package guarantees that the store
// and the live runtime never drift apart, even under partial failure:
//
//   - create compensates by removing the record if instantiation fails
//   - update restores the previous configuration if the replacement
//     cannot be instantiated
//   - delete tears the live entity down first and then removes the
//     record; a failed removal leaves a torn-down-but-persisted entity,
//     which is recoverable on next start (the deliberate exception)
//
// ConfigStore is the only entry point external callers use. All
// mutating operations on one unique id are serialized by a per-id lock;
// reads proceed concurrently.
package entity
