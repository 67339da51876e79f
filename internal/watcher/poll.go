package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"scribe/internal/logging"
	"scribe/internal/media"
)

// DefaultPollInterval is used when Options.Interval is not positive.
const DefaultPollInterval = time.Second

// Poll emits files that appear between successive directory listings.
type Poll struct {
	once
	root   string
	opts   Options
	ex     excluder
	logger *slog.Logger
}

// NewPoll creates a polling source rooted at root.
func NewPoll(root string, opts Options) *Poll {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	return &Poll{
		root:   filepath.Clean(root),
		opts:   opts,
		ex:     newExcluder(root, opts.Exclude),
		logger: logging.NewComponentLogger(opts.Logger, "watcher"),
	}
}

// Watch takes the initial listing and starts polling. Files in the initial
// listing are treated as pre-existing and only emitted with ProcessExisting.
func (p *Poll) Watch(ctx context.Context) (<-chan media.File, error) {
	if err := p.begin(); err != nil {
		return nil, err
	}
	if err := checkRoot(p.root); err != nil {
		return nil, err
	}
	initial, err := scan(p.root, p.opts.Recursive, p.ex, p.logger)
	if err != nil {
		return nil, err
	}

	p.logger.Info("polling for new media",
		logging.String("dir", p.root),
		logging.Duration("interval", p.opts.Interval),
		logging.Bool("recursive", p.opts.Recursive),
		logging.String(logging.FieldEventType, "watch_started"),
	)

	out := make(chan media.File)
	go p.loop(ctx, initial, out)
	return out, nil
}

func (p *Poll) loop(ctx context.Context, initial []media.File, out chan<- media.File) {
	defer close(out)

	seen := make(map[string]struct{}, len(initial))
	for _, file := range initial {
		seen[file.Path] = struct{}{}
		if p.opts.ProcessExisting && !emit(ctx, out, file) {
			return
		}
	}

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("watcher stopped", logging.String(logging.FieldEventType, "watch_stopped"))
			return
		case <-ticker.C:
		}

		files, err := scan(p.root, p.opts.Recursive, p.ex, p.logger)
		if err != nil {
			logging.WarnWithContext(p.logger, "directory poll failed", "poll_error",
				logging.String("dir", p.root),
				logging.Error(err),
				logging.String(logging.FieldImpact, "new files are detected on the next successful poll"),
			)
			continue
		}
		current := make(map[string]struct{}, len(files))
		for _, file := range files {
			current[file.Path] = struct{}{}
			if _, ok := seen[file.Path]; ok {
				continue
			}
			p.logger.Debug("file detected", logging.String(logging.FieldFile, file.Path))
			if !emit(ctx, out, file) {
				return
			}
		}
		// Dropping vanished paths lets a file that is archived and later
		// re-created under the same name be picked up again.
		seen = current
	}
}
