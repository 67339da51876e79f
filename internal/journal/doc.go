// Package journal records the outcome of every transcription job in SQLite.
//
// The journal is an append-only ledger: one row per job attempt, written after
// the job finishes. It backs the retry policy (how many times has this source
// failed since it last succeeded?) and the history command. It is not a work
// queue; pending files live only in the dispatcher's memory and the input
// directory itself.
//
// Schema changes bump schemaVersion in schema.go; users clear or delete the
// database to adopt the new schema.
package journal
