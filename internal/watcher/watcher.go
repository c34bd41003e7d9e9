// Package watcher turns filesystem events in the configured roots into
// debounced ingestion work, executed by a bounded worker queue.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 750 * time.Millisecond

// Watcher watches directories and enqueues files once they settle. A file
// is enqueued after its quiet period passes without further writes, so a
// slow copy produces one ingestion, not one per write burst.
type Watcher struct {
	roots       []string
	extensions  []string
	excludes    []string
	recursive   bool
	enqueue     func(path string) bool
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output (file events, directory adds).
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets the quiet period before a changed file is enqueued.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher over roots. extensions filters which files
// are considered (empty = all); excludePatterns are shell patterns matched
// against base names of files and directories. enqueue hands a settled file
// to the work queue and reports whether it was accepted.
func NewWatcher(roots, extensions, excludePatterns []string, recursive bool, enqueue func(path string) bool, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		roots:       roots,
		extensions:  extensions,
		excludes:    excludePatterns,
		recursive:   recursive,
		enqueue:     enqueue,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
// Missing roots are created.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.logger.Debug("watcher starting",
		zap.Strings("roots", w.roots),
		zap.Strings("extensions", w.extensions),
		zap.Bool("recursive", w.recursive))
	for _, root := range w.roots {
		if err := w.addRootLocked(root); err != nil {
			_ = w.watcher.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
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
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if !w.underRoot(path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch ev.Op {
	case fsnotify.Create, fsnotify.Write:
		// A directory moved or created under a root starts being watched.
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			if !w.excludedName(filepath.Base(path)) {
				w.handleNewDirectory(path)
			}
			return
		}
		if w.eligible(path) {
			w.debounceEnqueue(path)
		}
	case fsnotify.Remove, fsnotify.Rename:
		// A file gone before its quiet period passed is never ingested.
		// Already-ingested documents are kept; row deletion is an
		// administrative operation.
		w.cancelDebounce(path)
	}
}

// handleNewDirectory adds a newly appeared directory to the watch and
// enqueues the files already inside it, which fsnotify never reports as
// individual creates when a tree is moved in whole.
func (w *Watcher) handleNewDirectory(dirPath string) {
	w.logger.Debug("watcher handling new directory", zap.String("path", dirPath))

	w.mu.Lock()
	recursive := w.recursive
	watcher := w.watcher
	w.mu.Unlock()

	if watcher == nil {
		return
	}

	if recursive {
		filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if path != dirPath && w.excludedName(d.Name()) {
				return fs.SkipDir
			}
			if err := watcher.Add(path); err != nil {
				w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
			}
			return nil
		})
	} else {
		if err := watcher.Add(dirPath); err != nil {
			w.logger.Debug("watcher failed to add directory", zap.String("path", dirPath), zap.Error(err))
		}
	}

	w.scanDirectory(context.Background(), dirPath)
}

func (w *Watcher) underRoot(path string) bool {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	clean := filepath.Clean(path)
	for _, root := range roots {
		rootClean := filepath.Clean(root)
		if rootClean == clean || inDir(rootClean, clean) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// eligible reports whether a file path passes the extension and exclude
// filters.
func (w *Watcher) eligible(path string) bool {
	return matchExtension(path, w.extensions) && !w.excludedName(filepath.Base(path))
}

func (w *Watcher) excludedName(name string) bool {
	for _, pattern := range w.excludes {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

func matchExtension(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	if len(extensions) == 0 {
		return true
	}
	for _, e := range extensions {
		eNorm := strings.TrimPrefix(strings.ToLower(e), ".")
		extNorm := strings.TrimPrefix(strings.ToLower(ext), ".")
		if eNorm == extNorm {
			return true
		}
	}
	return false
}

func (w *Watcher) debounceEnqueue(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	t := time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.logger.Debug("watcher enqueueing settled file", zap.String("path", path))
		if w.enqueue != nil && !w.enqueue(path) {
			w.logger.Debug("watcher enqueue declined", zap.String("path", path))
		}
	})
	w.debounceMap[path] = t
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

func (w *Watcher) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(root, 0755); err != nil {
				return err
			}
		} else {
			return err
		}
	}
	if !w.recursive {
		return w.watcher.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.excludedName(d.Name()) {
			return fs.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// scanDirectory enqueues every eligible file under root.
func (w *Watcher) scanDirectory(ctx context.Context, root string) {
	w.mu.Lock()
	enqueue := w.enqueue
	w.mu.Unlock()
	w.logger.Debug("watcher scanning directory", zap.String("root", root))
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			if path != root && w.excludedName(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if w.eligible(path) && enqueue != nil {
			w.logger.Debug("watcher scan enqueueing file", zap.String("path", path))
			enqueue(path)
		}
		return nil
	})
}

// Directories returns a copy of the watched root directories.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// ScanExisting enqueues every eligible file already present under the
// watched roots. Call it after Start to pick up files that predate the
// watch.
func (w *Watcher) ScanExisting(ctx context.Context) error {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	w.logger.Debug("watcher scanning existing files", zap.Strings("roots", roots))
	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.scanDirectory(ctx, root)
	}
	return nil
}

// Stop stops the watcher, cancels pending debounce timers, and releases
// resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
