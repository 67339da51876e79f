// Package notifications publishes job and run events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers publish unconditionally. Per-file success events are suppressed
// unless notifications.on_success is set; failures and run summaries are
// always delivered.
package notifications
