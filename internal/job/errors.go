package job

import (
	"errors"
	"fmt"
	"strings"
)

// Failure classes carried by Outcome.Err.
var (
	ErrSettle     = errors.New("source not ready")
	ErrProbe      = errors.New("media probe failed")
	ErrTranscribe = errors.New("transcription failed")
	ErrOutput     = errors.New("output write failed")
	ErrArchive    = errors.New("archive failed")
)

// wrap tags err with marker and an operation label so callers can classify
// it with errors.Is.
func wrap(marker error, operation string, err error) error {
	operation = strings.TrimSpace(operation)
	switch {
	case err == nil && operation == "":
		return marker
	case err == nil:
		return fmt.Errorf("%w: %s", marker, operation)
	case operation == "":
		return fmt.Errorf("%w: %w", marker, err)
	default:
		return fmt.Errorf("%w: %s: %w", marker, operation, err)
	}
}

// Hint returns an operator-facing next step for a classified job error.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrSettle):
		return "the file disappeared or kept growing; copy it into the input directory again once complete"
	case errors.Is(err, ErrProbe):
		return "ffprobe found no usable audio; check the file plays, or set workflow.probe_media = false"
	case errors.Is(err, ErrTranscribe):
		return "check the model backend with scribe doctor and inspect the file with ffprobe"
	case errors.Is(err, ErrOutput):
		return "check free space and permissions on the transcript and subtitle directories"
	case errors.Is(err, ErrArchive):
		return "outputs were written; move the source out of the input directory manually"
	default:
		return ""
	}
}

// Stage returns the short failure class name used in logs and the journal.
func Stage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSettle):
		return "settle"
	case errors.Is(err, ErrProbe):
		return "probe"
	case errors.Is(err, ErrTranscribe):
		return "transcribe"
	case errors.Is(err, ErrOutput):
		return "output"
	case errors.Is(err, ErrArchive):
		return "archive"
	default:
		return "unknown"
	}
}
