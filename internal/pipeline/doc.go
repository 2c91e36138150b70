// Package pipeline tracks content units through the production lifecycle.
//
// A unit moves through an ordered set of stages from Draft to Published.
// Every transition is validated against the stage order, guarded by an
// optimistic version check, and recorded in an append-only event log. The
// Store persists units, their event history, fingerprint records, cost
// ledger buckets, and publish slots in a single SQLite database; the
// StateMachine is the only writer of unit stages.
package pipeline
