// Package logging assembles the slog loggers used across scribe.
//
// It owns the console and JSON handlers, routes output to stdout and the
// per-run log file, and exposes context-aware helpers so job code can tag
// every line with the job ID and source file without threading attributes by
// hand. A no-op logger is provided for tests and wiring code that cannot fail.
package logging
