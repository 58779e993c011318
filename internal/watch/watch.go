// Package watch stages files dropped into a directory for indexing.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/user/docpilot/internal/ingest"
)

// DefaultDelay is how long a directory must stay quiet before a batch is
// emitted.
const DefaultDelay = 2 * time.Second

// BatchFunc receives the files created or written since the last batch.
type BatchFunc func(files []ingest.FileDescriptor)

// Watcher reports new and changed files in one directory in debounced
// batches.
type Watcher struct {
	dir     string
	delay   time.Duration
	onBatch BatchFunc
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer

	// deliver is held for the whole of a flush so batches never overlap.
	deliver sync.Mutex
}

// New creates a watcher for dir. A non-positive delay uses DefaultDelay.
func New(dir string, delay time.Duration, onBatch BatchFunc) *Watcher {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Watcher{
		dir:     dir,
		delay:   delay,
		onBatch: onBatch,
		logger:  slog.Default().With("component", "watch", "dir", dir),
		pending: make(map[string]struct{}),
	}
}

// Run watches until ctx is cancelled. Batches are delivered on timer
// goroutines, one at a time: a batch that settles while the previous
// onBatch is still running waits for it to return.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("stat watch dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", w.dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching for documents")

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				w.touch(ev.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) touch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.flush)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) flush() {
	w.deliver.Lock()
	defer w.deliver.Unlock()

	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	sort.Strings(paths)
	files := make([]ingest.FileDescriptor, 0, len(paths))
	for _, p := range paths {
		desc, err := ingest.Describe(p)
		if err != nil {
			w.logger.Debug("skipping path", "path", p, "error", err)
			continue
		}
		files = append(files, desc...)
	}
	if len(files) > 0 {
		w.onBatch(files)
	}
}
