// Package language normalizes the optional language hint passed to the
// transcription backends.
//
// Hints may be given as ISO 639-1 or 639-2 codes, English names, or BCP 47
// tags; everything is reduced to the two-letter code Whisper accepts.
package language
