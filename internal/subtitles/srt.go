package subtitles

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"scribe/internal/fileutil"
)

const timestampLayout = "15:04:05,000"

// Segment is a timed span of recognized speech. Offsets are milliseconds from
// the start of the media.
type Segment struct {
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// FormatTimestamp renders ms as HH:MM:SS,mmm. The value is treated as an
// offset from the Unix epoch in UTC, so hours wrap after 24. Negative values
// clamp to zero.
func FormatTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	return time.UnixMilli(ms).UTC().Format(timestampLayout)
}

// Format renders segments as SRT records numbered from 1 in input order.
// Overlapping or non-contiguous segments are emitted as given.
func Format(segments []Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteByte('\n')
		b.WriteString(FormatTimestamp(seg.StartMS))
		b.WriteString(" --> ")
		b.WriteString(FormatTimestamp(seg.EndMS))
		b.WriteByte('\n')
		b.WriteString(seg.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// WriteFile writes segments to path as UTF-8 SRT, replacing any existing file.
func WriteFile(path string, segments []Segment) error {
	if err := fileutil.WriteFileAtomic(path, []byte(Format(segments)), 0o644); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	return nil
}
