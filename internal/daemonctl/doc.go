// Package daemonctl inspects and stops a running watch process from another
// process using the lock and pid files the daemon maintains.
package daemonctl
