// Package main hosts the Guidora CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into pipeline
// store operations, scheduling passes, publish-result ingestion, and
// configuration scaffolding, and hosts the foreground daemon process. It
// centralizes configuration resolution so subcommands can focus on user
// experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
