// Package logging constructs the slog loggers used across guidora.
//
// Loggers are built from configuration (level, format, output paths) and
// shared between the daemon, workflow stages, and CLI commands. Components
// attach a stable component attribute via NewComponentLogger so log lines
// can be filtered per subsystem (gateway, scheduler, pipeline, ...).
package logging
