// Package watch stages worktree edits as they happen.
package watch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gible/internal/workspace"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const DefaultDebounce = 300 * time.Millisecond

// Stager receives worktree-relative, slash-separated paths.
type Stager interface {
	Add(path string) error
	Forget(path string) error
}

type Option func(*Watcher)

// WithDebounce sets how long the watcher waits for a burst of events to
// settle before staging.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.delay = d }
}

// Watcher batches filesystem events under a worktree and hands the touched
// paths to a Stager.
type Watcher struct {
	root    string
	stager  Stager
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	delay   time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer

	// serializes calls into the stager
	flushMu sync.Mutex

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New starts watching root and every directory below it.
func New(root string, stager Stager, logger *zap.Logger, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		root:    abs,
		stager:  stager,
		watcher: fw,
		logger:  logger,
		delay:   DefaultDebounce,
		pending: make(map[string]struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	// Files already on disk are not staged; only changes are.
	if _, err := w.addTree(abs); err != nil {
		fw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// ignored reports whether rel lies in the repository dir or a hidden dir.
func ignored(rel string) bool {
	if rel == "." || rel == "" {
		return false
	}
	if workspace.ShouldIgnore(rel) {
		return true
	}
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func (w *Watcher) rel(p string) (string, bool) {
	rel, err := filepath.Rel(w.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// addTree watches dir and every visible directory below it, returning the
// regular files it passed on the way.
func (w *Watcher) addTree(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		rel, ok := w.rel(p)
		if !ok || ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			if d.Type().IsRegular() {
				files = append(files, rel)
			}
			return nil
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
	return files, err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, ok := w.rel(event.Name)
	if !ok || ignored(rel) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// Files can land in the directory before its watch exists.
			files, err := w.addTree(event.Name)
			if err != nil {
				w.logger.Error("watching new directory", zap.String("dir", rel), zap.Error(err))
			}
			w.queue(files...)
			return
		}
	}
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}
	w.queue(rel)
}

func (w *Watcher) queue(paths ...string) {
	if len(paths) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range paths {
		w.pending[p] = struct{}{}
	}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.delay, w.flush)
	} else {
		w.timer.Reset(w.delay)
	}
}

// flush stages every pending path that is still a regular file and forgets
// the rest.
func (w *Watcher) flush() {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()
	sort.Strings(paths)

	for _, p := range paths {
		info, err := os.Stat(filepath.Join(w.root, filepath.FromSlash(p)))
		switch {
		case errors.Is(err, os.ErrNotExist):
			if err := w.stager.Forget(p); err != nil {
				w.logger.Warn("unstaging removed file", zap.String("path", p), zap.Error(err))
				continue
			}
			w.logger.Debug("forgot", zap.String("path", p))
		case err != nil:
			w.logger.Warn("stat", zap.String("path", p), zap.Error(err))
		case info.Mode().IsRegular():
			if err := w.stager.Add(p); err != nil {
				w.logger.Warn("staging changed file", zap.String("path", p), zap.Error(err))
				continue
			}
			w.logger.Debug("staged", zap.String("path", p))
		}
	}
}

// Close stops watching and stages whatever is still pending.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		w.flush()
	})
	return err
}
