// Package subtitles renders transcription segments as SRT subtitle files and
// performs light sanity checks on the written result.
package subtitles
