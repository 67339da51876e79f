// Package ffprobe inspects media files with ffprobe's JSON output.
//
// Prober adapts Inspect to media.Prober so jobs can reject files without an
// audio stream before handing them to the model.
package ffprobe
