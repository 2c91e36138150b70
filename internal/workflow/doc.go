// Package workflow advances content units through the configured pipeline
// stages.
//
// The Manager polls the store and feeds processable units into registered
// stage handlers (extractor, generator, translator, speech synthesizer,
// asset watchers, readiness gate) through a bounded worker pool, while
// capturing failure metadata and emitting notifications. It also runs the
// scheduler cadence on a fixed interval and ingests publish reports from
// the external uploader.
//
// Units in different stages progress in parallel; a single unit is claimed
// by exactly one worker at a time, and the optimistic version check on
// every transition keeps racing writers safe. When the cost budget is
// exhausted the manager pauses dispatch instead of spinning on denied
// reservations.
//
// Add new lifecycle stages by extending the pipeline stage enum and
// registering a handler for the new stage; this package is the
// authoritative home for that coordination logic.
package workflow
