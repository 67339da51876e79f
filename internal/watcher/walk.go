package watcher

import (
	"context"
	"log/slog"
	"path/filepath"

	"scribe/internal/logging"
	"scribe/internal/media"
)

// Walk enumerates every accepted file under a root once, then closes its channel.
type Walk struct {
	once
	root   string
	ex     excluder
	logger *slog.Logger
}

// NewWalk creates a one-shot recursive source. Directories in exclude are skipped.
func NewWalk(root string, exclude []string, logger *slog.Logger) *Walk {
	return &Walk{
		root:   filepath.Clean(root),
		ex:     newExcluder(root, exclude),
		logger: logging.NewComponentLogger(logger, "watcher"),
	}
}

// Watch lists the whole tree before emitting anything, so files moved out of
// the tree by running jobs cannot disturb the traversal.
func (w *Walk) Watch(ctx context.Context) (<-chan media.File, error) {
	if err := w.begin(); err != nil {
		return nil, err
	}
	if err := checkRoot(w.root); err != nil {
		return nil, err
	}
	files, err := scan(w.root, true, w.ex, w.logger)
	if err != nil {
		return nil, err
	}
	w.logger.Info("found media files",
		logging.String("dir", w.root),
		logging.Int("count", len(files)),
		logging.String(logging.FieldEventType, "walk_complete"),
	)

	out := make(chan media.File)
	go func() {
		defer close(out)
		for _, file := range files {
			if !emit(ctx, out, file) {
				return
			}
		}
	}()
	return out, nil
}
