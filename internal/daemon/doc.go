// Package daemon owns the long-running watch process lifecycle.
//
// It enforces single-instance execution with a flock on <log_dir>/scribe.lock,
// publishes the process id in <log_dir>/scribe.pid for scribe status and
// scribe stop, and runs the pipeline until the watcher is interrupted. A second
// watch process against the same log directory fails fast instead of
// competing for the same input files.
package daemon
