// Package pipeline connects a watcher source to the dispatcher and the job
// runner.
//
// Run consumes the source until its channel closes: on interrupt for the
// continuous watchers, on exhaustion for the one-shot walk. Intake then stops
// and every queued or running job finishes on a context detached from the
// interrupt before Run returns the run Summary.
package pipeline
