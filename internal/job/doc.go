// Package job runs one transcription job for one source file.
//
// A job waits for the file to settle (optional), asks the transcriber for text
// and timed segments, writes the plain-text transcript and the SRT subtitle
// file, then moves the source into the archive. Failures are classified with
// the sentinel errors in this package, logged, recorded in the journal and
// returned inside the Outcome; they never escape Process.
package job
