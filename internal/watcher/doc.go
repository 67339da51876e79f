// Package watcher discovers media files and emits them on a channel.
//
// Three sources share the Source interface: Notify reacts to filesystem
// creation events, Poll diffs directory listings on an interval for mounts
// that do not deliver events, and Walk enumerates an existing tree once for
// batch runs. Only files with an accepted media extension are emitted.
// Sources are single-use; the returned channel closes when the context is
// cancelled or, for Walk, when the tree is exhausted.
package watcher
