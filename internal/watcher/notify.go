package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"scribe/internal/logging"
	"scribe/internal/media"
)

// Notify emits files as the operating system reports their creation.
type Notify struct {
	once
	root   string
	opts   Options
	ex     excluder
	logger *slog.Logger
}

// NewNotify creates a native-event source rooted at root.
func NewNotify(root string, opts Options) *Notify {
	return &Notify{
		root:   filepath.Clean(root),
		opts:   opts,
		ex:     newExcluder(root, opts.Exclude),
		logger: logging.NewComponentLogger(opts.Logger, "watcher"),
	}
}

// Watch registers the watch and starts delivering files. Registration
// failures are returned; later event errors are logged and watching continues.
func (n *Notify) Watch(ctx context.Context) (<-chan media.File, error) {
	if err := n.begin(); err != nil {
		return nil, err
	}
	if err := checkRoot(n.root); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := n.addTree(fsw, n.root); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	// Existing files are listed after the watch is registered so nothing
	// created in between is missed; the dispatcher drops the duplicates.
	var existing []media.File
	if n.opts.ProcessExisting {
		existing, err = scan(n.root, n.opts.Recursive, n.ex, n.logger)
		if err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("scan existing files: %w", err)
		}
	}

	n.logger.Info("watching for new media",
		logging.String("dir", n.root),
		logging.Bool("recursive", n.opts.Recursive),
		logging.Int("existing", len(existing)),
		logging.String(logging.FieldEventType, "watch_started"),
	)

	out := make(chan media.File)
	go n.loop(ctx, fsw, existing, out)
	return out, nil
}

func (n *Notify) loop(ctx context.Context, fsw *fsnotify.Watcher, existing []media.File, out chan<- media.File) {
	defer close(out)
	defer func() {
		if err := fsw.Close(); err != nil {
			n.logger.Debug("fsnotify close failed", logging.Error(err))
		}
	}()

	for _, file := range existing {
		if !emit(ctx, out, file) {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("watcher stopped", logging.String(logging.FieldEventType, "watch_stopped"))
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) {
				continue
			}
			if !n.handleCreate(ctx, fsw, ev.Name, out) {
				return
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logging.WarnWithContext(n.logger, "filesystem watch error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "some file events may have been missed"),
				logging.String(logging.FieldErrorHint, "enable workflow.process_existing or restart to pick up missed files"),
			)
		}
	}
}

// handleCreate returns false when the context ended while emitting.
func (n *Notify) handleCreate(ctx context.Context, fsw *fsnotify.Watcher, path string, out chan<- media.File) bool {
	info, err := os.Lstat(path)
	if err != nil {
		// Created and removed again before we looked.
		return true
	}
	if info.IsDir() {
		if !n.opts.Recursive || n.ex.skip(path) {
			return true
		}
		if err := n.addTree(fsw, path); err != nil {
			logging.WarnWithContext(n.logger, "cannot watch new directory", "watch_add_failed",
				logging.String("dir", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "files in this directory are not processed"),
			)
			return true
		}
		// Files may land in the directory before its watch exists.
		files, err := scan(path, true, n.ex, n.logger)
		if err != nil {
			return true
		}
		for _, f := range files {
			if file, ok := media.NewFile(n.root, f.Path); ok && !emit(ctx, out, file) {
				return false
			}
		}
		return true
	}
	if !info.Mode().IsRegular() {
		return true
	}
	file, ok := media.NewFile(n.root, path)
	if !ok {
		n.logger.Debug("ignoring unsupported file", logging.String(logging.FieldFile, path))
		return true
	}
	n.logger.Debug("file detected", logging.String(logging.FieldFile, path))
	return emit(ctx, out, file)
}

func (n *Notify) addTree(fsw *fsnotify.Watcher, dir string) error {
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if !n.opts.Recursive {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(dir, entry.Name())
		if n.ex.skip(sub) {
			continue
		}
		if err := n.addTree(fsw, sub); err != nil {
			return err
		}
	}
	return nil
}
