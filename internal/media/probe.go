package media

import (
	"context"
	"time"
)

// Info is the container metadata scribe cares about.
type Info struct {
	Duration     time.Duration
	AudioStreams int
	VideoStreams int
}

// Prober inspects a media file before it is transcribed.
type Prober interface {
	Probe(ctx context.Context, path string) (Info, error)
}
