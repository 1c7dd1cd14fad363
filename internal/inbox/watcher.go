// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/tidyrun/internal/table"
)

// DefaultDebounce is how long a file must be quiet before it is handled.
const DefaultDebounce = 500 * time.Millisecond

// cleanedSuffix marks files written by the clean pipeline.
const cleanedSuffix = ".cleaned.csv"

// Handler processes one settled dataset file.
type Handler func(ctx context.Context, path string) error

// =============================================================================
// WATCHER
// =============================================================================

// Watcher debounces filesystem events in one directory and calls the
// handler once per settled file.
type Watcher struct {
	dir          string
	handler      Handler
	debounce     time.Duration
	scanExisting bool
	logger       *slog.Logger

	mu      sync.Mutex
	pending map[string]time.Time // path -> last event
	handled map[string]time.Time // path -> mod time when handled
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet interval. Values <= 0 are ignored.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithScanExisting queues files already present in the directory on start.
func WithScanExisting(scan bool) Option {
	return func(w *Watcher) { w.scanExisting = scan }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a watcher for dir. The directory must exist.
func New(dir string, handler Handler, opts ...Option) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("inbox: handler is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("inbox: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("inbox: %s is not a directory", dir)
	}

	w := &Watcher{
		dir:      dir,
		handler:  handler,
		debounce: DefaultDebounce,
		logger:   slog.New(slog.DiscardHandler),
		pending:  make(map[string]time.Time),
		handled:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Accepts reports whether path names a dataset the inbox handles.
func Accepts(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, cleanedSuffix) {
		return false
	}
	return table.Supported(name)
}

// Run watches until ctx is cancelled. Handler errors are logged and do not
// stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("inbox: watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching inbox", "dir", w.dir, "debounce", w.debounce)

	if w.scanExisting {
		w.scan(time.Now())
	}

	ticker := time.NewTicker(w.tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.note(event.Name, time.Now())
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "err", err)

		case now := <-ticker.C:
			for _, path := range w.due(now) {
				if ctx.Err() != nil {
					return nil
				}
				w.handle(ctx, path)
			}
		}
	}
}

func (w *Watcher) tick() time.Duration {
	t := w.debounce / 2
	if t > 100*time.Millisecond {
		t = 100 * time.Millisecond
	}
	if t < 5*time.Millisecond {
		t = 5 * time.Millisecond
	}
	return t
}

// scan queues the datasets already in the directory.
func (w *Watcher) scan(now time.Time) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("scan inbox", "err", err)
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.note(filepath.Join(w.dir, e.Name()), now)
		}
	}
}

// note records an event for path.
func (w *Watcher) note(path string, at time.Time) {
	if !Accepts(path) {
		return
	}
	w.mu.Lock()
	w.pending[path] = at
	w.mu.Unlock()
}

// due removes and returns the pending paths quiet since now-debounce,
// oldest first.
func (w *Watcher) due(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, path)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		a, b := w.pending[ready[i]], w.pending[ready[j]]
		if a.Equal(b) {
			return ready[i] < ready[j]
		}
		return a.Before(b)
	})
	for _, path := range ready {
		delete(w.pending, path)
	}
	return ready
}

// handle runs the handler for path unless it was already handled at its
// current modification time.
func (w *Watcher) handle(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	w.mu.Lock()
	last, seen := w.handled[path]
	if seen && last.Equal(info.ModTime()) {
		w.mu.Unlock()
		return
	}
	w.handled[path] = info.ModTime()
	w.mu.Unlock()

	start := time.Now()
	if err := w.handler(ctx, path); err != nil {
		w.logger.Error("inbox file failed", "file", path, "err", err)
		return
	}
	w.logger.Info("inbox file handled", "file", path, "elapsed", time.Since(start).Round(time.Millisecond))
}
