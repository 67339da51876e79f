package pipeline

import "scribe/internal/config"

// MirrorOutput returns a copy of cfg that writes transcripts, subtitles and
// archived sources under a single directory, mirroring the input tree.
func MirrorOutput(cfg *config.Config, dir string) *config.Config {
	out := *cfg
	out.Paths.TranscriptDir = dir
	out.Paths.SubtitleDir = dir
	out.Paths.ArchiveDir = dir
	return &out
}
