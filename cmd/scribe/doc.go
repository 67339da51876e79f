// Package main hosts the scribe CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration (file, environment and flag
// overrides), then hands off to the runtime in internal/daemonrun for watch
// and batch runs, or reads the journal and lock files for history, status and
// stop. Heavy lifting lives in the internal packages; commands here only wire
// flags to them and render results.
package main
