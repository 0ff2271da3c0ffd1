// Package watcher drops PDFs placed in an inbox directory into the ingestion
// pipeline, with fsnotify and per-file debouncing.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// InboxWatcher watches a single directory for new PDF files. Writes are
// debounced per file so a PDF is picked up once its copy has settled.
type InboxWatcher struct {
	inbox    string
	onPDF    func(path string)
	debounce time.Duration
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	timers   map[string]*time.Timer
	done     chan struct{}
	started  bool
	stopOnce sync.Once
	logger   *zap.Logger
}

// Option configures an InboxWatcher.
type Option func(*InboxWatcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *InboxWatcher) { w.logger = l }
}

// WithDebounce overrides the settle delay before a file is handed off.
func WithDebounce(d time.Duration) Option {
	return func(w *InboxWatcher) { w.debounce = d }
}

// NewInboxWatcher creates a watcher over inbox. onPDF is called with the path
// of each settled PDF.
func NewInboxWatcher(inbox string, onPDF func(path string), opts ...Option) *InboxWatcher {
	w := &InboxWatcher{
		inbox:    inbox,
		onPDF:    onPDF,
		debounce: defaultDebounce,
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. The inbox directory is created if missing. Runs
// until ctx is cancelled or Stop is called.
func (w *InboxWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	if err := os.MkdirAll(w.inbox, 0755); err != nil {
		w.mu.Unlock()
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := watcher.Add(w.inbox); err != nil {
		_ = watcher.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.mu.Unlock()

	w.logger.Debug("inbox watcher started", zap.String("inbox", w.inbox))
	go w.run(ctx)
	return nil
}

func (w *InboxWatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("inbox watcher error", zap.Error(err))
			}
		}
	}
}

func (w *InboxWatcher) handleEvent(ev fsnotify.Event) {
	if !isPDF(ev.Name) {
		return
	}
	switch {
	case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
		w.logger.Debug("inbox file event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
		w.schedule(ev.Name)
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		w.cancel(ev.Name)
	}
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func (w *InboxWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.logger.Debug("inbox file settled", zap.String("path", path))
		if w.onPDF != nil {
			w.onPDF(path)
		}
	})
}

func (w *InboxWatcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

// SyncExisting hands off PDFs that were already in the inbox when the
// watcher started.
func (w *InboxWatcher) SyncExisting() {
	entries, err := os.ReadDir(w.inbox)
	if err != nil {
		w.logger.Debug("inbox sync failed", zap.Error(err))
		return
	}
	for _, e := range entries {
		if e.IsDir() || !isPDF(e.Name()) {
			continue
		}
		path := filepath.Join(w.inbox, e.Name())
		w.logger.Debug("inbox sync handing off file", zap.String("path", path))
		if w.onPDF != nil {
			w.onPDF(path)
		}
	}
}

// Stop stops the watcher and releases resources.
func (w *InboxWatcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
