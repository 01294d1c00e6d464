// Package watch re-runs the pipeline when files under a project change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
)

// RunFunc performs one pipeline run.
type RunFunc func(ctx context.Context) error

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period after the last change before a run starts.
	Debounce time.Duration
	// IgnoreNames are directory or file base names whose subtrees never trigger runs.
	IgnoreNames []string
	// IgnorePaths are absolute paths whose subtrees never trigger runs, such as
	// a deploy target nested in the project.
	IgnorePaths []string
	Logger      *slog.Logger
}

// Watcher runs a RunFunc once and then again after each burst of changes.
// Runs never overlap.
type Watcher struct {
	root     string
	run      RunFunc
	debounce time.Duration
	names    map[string]struct{}
	paths    []string
	logger   *slog.Logger
}

// New creates a watcher for root.
func New(root string, run RunFunc, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	names := make(map[string]struct{}, len(opts.IgnoreNames))
	for _, n := range opts.IgnoreNames {
		names[filepath.Clean(filepath.FromSlash(n))] = struct{}{}
	}
	paths := make([]string, 0, len(opts.IgnorePaths))
	for _, p := range opts.IgnorePaths {
		paths = append(paths, filepath.Clean(p))
	}
	return &Watcher{
		root:     filepath.Clean(root),
		run:      run,
		debounce: opts.Debounce,
		names:    names,
		paths:    paths,
		logger:   opts.Logger,
	}
}

// Run performs the initial run and then watches until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := w.addRecursive(fw, w.root); err != nil {
		return err
	}

	w.runOnce(ctx)
	w.logger.Info("Watching for changes", logfields.Project(w.root), slog.Duration("debounce", w.debounce))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.Ignored(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create == fsnotify.Create {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = w.addRecursive(fw, ev.Name)
				}
			}
			w.logger.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", logfields.Error(err))
		case <-fire:
			fire = nil
			w.logger.Info("Change detected; rebuilding", logfields.Project(w.root))
			w.runOnce(ctx)
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context) {
	if err := w.run(ctx); err != nil {
		w.logger.Warn("Run failed", logfields.Project(w.root), logfields.Error(err))
	}
}

func (w *Watcher) addRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.Ignored(path) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			w.logger.Warn("Watch add failed", logfields.Dir(path), logfields.Error(err))
		}
		return nil
	})
}

// Ignored reports whether a change at path should not trigger a run.
func (w *Watcher) Ignored(path string) bool {
	path = filepath.Clean(path)
	for _, p := range w.paths {
		if path == p || strings.HasPrefix(path, p+string(filepath.Separator)) {
			return true
		}
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if _, ok := w.names[part]; ok {
			return true
		}
	}
	for name := range w.names {
		if strings.Contains(name, string(filepath.Separator)) && (rel == name || strings.HasPrefix(rel, name+string(filepath.Separator))) {
			return true
		}
	}

	base := filepath.Base(path)
	return strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") || strings.HasPrefix(base, ".#")
}
