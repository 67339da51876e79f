// Package dispatch runs transcription jobs on a fixed number of workers.
//
// Submit never blocks: files queue in memory until a worker is free. A path
// is accepted at most once while it is queued or running, so duplicate
// watcher events cannot start two jobs on the same file. Close stops intake
// and Wait drains everything already queued before returning.
package dispatch
