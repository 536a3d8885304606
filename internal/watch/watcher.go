// Package watch triggers republishing when site sources change or on a
// schedule.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/sitepublish/internal/folders"
	ferrors "git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepublish/internal/logfields"
)

// DefaultDebounce is the quiet period used when Options.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// TriggerFunc runs one rebuild. reason describes what caused it.
type TriggerFunc func(ctx context.Context, reason string)

// Options controls a Watcher.
type Options struct {
	Root string
	// Ignore lists doublestar globs, relative to Root, whose changes are
	// ignored. The output and internal folders are always ignored.
	Ignore   []string
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher monitors a site root recursively and calls its trigger once the
// tree has been quiet for the debounce period.
type Watcher struct {
	root     string
	ignore   []string
	debounce time.Duration
	logger   *slog.Logger
	fs       *fsnotify.Watcher
}

// New creates a watcher for opts.Root. Call Run to start watching.
func New(opts Options) (*Watcher, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to resolve watch root").
			WithContext("path", opts.Root).
			Build()
	}
	for _, pattern := range opts.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return nil, ferrors.ValidationError("invalid watch ignore pattern").
				WithContext("pattern", pattern).
				Build()
		}
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "failed to create file watcher").Build()
	}

	w := &Watcher{
		root:     root,
		ignore:   append([]string{folders.OutputName, folders.OutputName + "/**", folders.InternalName, folders.InternalName + "/**", "**/.git", "**/.git/**"}, opts.Ignore...),
		debounce: opts.Debounce,
		logger:   opts.Logger,
		fs:       fw,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if err := w.addTree(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Run delivers debounced change notifications to trigger until ctx is done.
// Triggers run on the calling goroutine, one at a time; changes made while a
// trigger runs start a new quiet period.
func (w *Watcher) Run(ctx context.Context, trigger TriggerFunc) error {
	w.logger.Info("Watching for changes", logfields.Root(w.root))

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	var pending string
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			rel, relevant := w.relevant(event.Name)
			if !relevant {
				continue
			}
			if event.Has(fsnotify.Create) {
				w.watchCreated(event.Name)
			}
			w.logger.Debug("Change detected", logfields.Path(rel), slog.String("op", event.Op.String()))
			pending = rel
			timer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", logfields.Error(err))

		case <-timer.C:
			trigger(ctx, "change: "+pending)
		}
	}
}

// relevant reports whether a change at path should trigger a rebuild, and
// returns its root relative path.
func (w *Watcher) relevant(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	return rel, !w.ignored(rel)
}

func (w *Watcher) ignored(rel string) bool {
	for _, pattern := range w.ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// watchCreated starts watching a newly created path. Failures are logged and
// leave the rest of the tree watched.
func (w *Watcher) watchCreated(path string) {
	if err := w.addTree(path); err != nil {
		w.logger.Warn("Failed to watch new folder", logfields.Path(path), logfields.Error(err))
	}
}

// addTree watches dir and every directory below it that is not ignored.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root {
			if rel, ok := w.relevant(path); !ok {
				w.logger.Debug("Not watching ignored folder", logfields.Path(rel))
				return filepath.SkipDir
			}
		}
		if err := w.fs.Add(path); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to watch folder").
				WithContext("path", path).
				Build()
		}
		return nil
	})
}

// Serial wraps fn so that concurrent triggers, from the watcher and the
// scheduler, never overlap.
func Serial(fn TriggerFunc) TriggerFunc {
	var mu sync.Mutex
	return func(ctx context.Context, reason string) {
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		fn(ctx, reason)
	}
}
