// Package watcher observes each index type's data folder and emits
// debounced change batches. The serve loop turns those batches into
// session invalidations; nothing here ever touches a running
// generation.
package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	kberr "github.com/mwestra/kbindex/internal/errors"
	"github.com/mwestra/kbindex/internal/ignore"
)

// Watcher wraps fsnotify over a set of data folders. fsnotify watches
// are per-directory, so subdirectories are registered up front and new
// ones as they appear.
type Watcher struct {
	fs        *fsnotify.Watcher
	debouncer *Debouncer
	logger    *slog.Logger

	mu    sync.Mutex
	roots map[string]watchedRoot // data dir root -> index type + exclusions
	done  chan struct{}
	once  sync.Once
}

type watchedRoot struct {
	indexType string
	excl      *ignore.Matcher
}

// New creates a watcher with the given debounce window.
func New(window time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, kberr.InternalError("create file watcher", err)
	}
	w := &Watcher{
		fs:        fs,
		debouncer: NewDebouncer(window, logger),
		logger:    logger,
		roots:     make(map[string]watchedRoot),
		done:      make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Watch registers one index type's data folder, recursively.
func (w *Watcher) Watch(indexType, dataDir string) error {
	root, err := filepath.Abs(dataDir)
	if err != nil {
		return kberr.InternalError("resolve data dir", err)
	}

	excl, err := ignore.Load(root)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.roots[root] = watchedRoot{indexType: indexType, excl: excl}
	w.mu.Unlock()

	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return kberr.New(kberr.ErrCodeDataDirNotFound,
				"cannot watch data dir "+dataDir, err)
		}
		if !d.IsDir() {
			return nil
		}
		if base := filepath.Base(path); path != root && strings.HasPrefix(base, ".") {
			return filepath.SkipDir
		}
		if path != root {
			if rel, relErr := filepath.Rel(root, path); relErr == nil && excl.Match(rel, true) {
				return filepath.SkipDir
			}
		}
		if err := w.fs.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// Changes returns the debounced batch channel. Closed on Close.
func (w *Watcher) Changes() <-chan []Change {
	return w.debouncer.Output()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") {
		return
	}

	root, wr := w.rootFor(ev.Name)
	if wr.indexType == "" {
		return
	}
	rel, err := filepath.Rel(root, ev.Name)
	if err != nil {
		rel = name
	}

	var op Op
	switch {
	case ev.Op.Has(fsnotify.Create):
		op = OpCreate
		// A new subdirectory needs its own watch before files land in it.
		if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
			if wr.excl.Match(rel, true) {
				return
			}
			if err := w.fs.Add(ev.Name); err != nil {
				w.logger.Warn("failed to watch new directory",
					"path", ev.Name, "error", err)
			}
			return
		}
	case ev.Op.Has(fsnotify.Write):
		op = OpModify
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return
	}

	if wr.excl.Match(rel, false) {
		return
	}

	w.debouncer.Add(Change{
		IndexType: wr.indexType,
		Path:      ev.Name,
		Op:        op,
		Timestamp: time.Now(),
	})
}

// rootFor maps an event path back to the watched root containing it.
func (w *Watcher) rootFor(path string) (string, watchedRoot) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for root, wr := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return root, wr
		}
	}
	return "", watchedRoot{}
}

// Close stops watching and closes the change channel. Safe to call
// more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
		w.debouncer.Stop()
	})
	return err
}
