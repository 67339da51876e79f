// Package logs reads scribe's run logs for the `scribe logs` command.
//
// Last returns the final lines of a file with bounded memory, ReadFrom
// resumes at a byte offset, and Follow polls for appended lines until its
// context ends. Current resolves the scribe.log pointer that each watch or
// batch run updates.
package logs
