package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/media"
)

// ErrAlreadyStarted is returned when Watch is called a second time.
var ErrAlreadyStarted = errors.New("watcher already started")

// Source produces candidate media files.
type Source interface {
	Watch(ctx context.Context) (<-chan media.File, error)
}

// Options tunes the continuous sources.
type Options struct {
	// Recursive includes files in subdirectories of the root.
	Recursive bool
	// ProcessExisting emits files already present when watching starts.
	ProcessExisting bool
	// Interval is the Poll scan period.
	Interval time.Duration
	// Exclude lists directories that are never descended into or reported.
	Exclude []string
	Logger  *slog.Logger
}

// New builds the continuous source configured by cfg.Workflow.Watcher for the input directory.
func New(cfg *config.Config, logger *slog.Logger) (Source, error) {
	opts := Options{
		Recursive:       cfg.Workflow.Recursive,
		ProcessExisting: cfg.Workflow.ProcessExisting,
		Interval:        time.Duration(cfg.Workflow.PollInterval) * time.Second,
		Exclude:         cfg.ManagedDirs(),
		Logger:          logger,
	}
	switch cfg.Workflow.Watcher {
	case config.WatcherNative:
		return NewNotify(cfg.Paths.InputDir, opts), nil
	case config.WatcherPoll:
		return NewPoll(cfg.Paths.InputDir, opts), nil
	default:
		return nil, fmt.Errorf("watcher: unsupported kind %q", cfg.Workflow.Watcher)
	}
}

type once struct {
	started atomic.Bool
}

func (o *once) begin() error {
	if !o.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	return nil
}

func checkRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root %s is not a directory", root)
	}
	if _, err := os.ReadDir(root); err != nil {
		return fmt.Errorf("watch root: %w", err)
	}
	return nil
}

type excluder struct {
	dirs []string
}

func newExcluder(root string, dirs []string) excluder {
	cleanRoot := filepath.Clean(root)
	var out []string
	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		dir = filepath.Clean(dir)
		if dir == cleanRoot {
			continue
		}
		out = append(out, dir)
	}
	return excluder{dirs: out}
}

func (e excluder) skip(path string) bool {
	path = filepath.Clean(path)
	for _, dir := range e.dirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// scan lists accepted files under root, sorted by path. Unreadable
// subdirectories are logged and skipped.
func scan(root string, recursive bool, ex excluder, logger *slog.Logger) ([]media.File, error) {
	var files []media.File
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logging.WarnWithContext(logger, "skipping unreadable path", "scan_error",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "files below this path are not processed"),
				logging.String(logging.FieldErrorHint, "check directory permissions"),
			)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !recursive || ex.skip(path) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if file, ok := media.NewFile(root, path); ok {
			files = append(files, file)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func emit(ctx context.Context, out chan<- media.File, file media.File) bool {
	select {
	case out <- file:
		return true
	case <-ctx.Done():
		return false
	}
}
