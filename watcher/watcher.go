// Package watcher detects changes to the files a ledger was loaded from.
//
// Two implementations share the Watcher interface: PollingWatcher compares
// modification times on every Check, NotifyWatcher listens for filesystem
// events with fsnotify and only reports what it has seen.
package watcher

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher tracks a set of files and folders.
type Watcher interface {
	// Update replaces the watched files and folders. Changes made before
	// Update are forgotten.
	Update(files, folders []string) error
	// Check reports whether anything changed since the last Check or
	// Update.
	Check() (bool, error)
	Close() error
}

// PollingWatcher stats every watched path on Check. Folders are walked.
type PollingWatcher struct {
	mu      sync.Mutex
	files   []string
	folders []string
	mtimes  map[string]time.Time
}

// NewPollingWatcher creates a PollingWatcher watching nothing.
func NewPollingWatcher() *PollingWatcher {
	return &PollingWatcher{mtimes: map[string]time.Time{}}
}

func (w *PollingWatcher) Update(files, folders []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files = append([]string(nil), files...)
	w.folders = append([]string(nil), folders...)
	w.mtimes = w.scan()
	return nil
}

func (w *PollingWatcher) Check() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	current := w.scan()
	changed := len(current) != len(w.mtimes)
	for path, mtime := range current {
		if prev, ok := w.mtimes[path]; !ok || !prev.Equal(mtime) {
			changed = true
		}
	}
	w.mtimes = current
	return changed, nil
}

// scan records the modification time of every watched path. Missing paths
// are left out, so their removal and reappearance both count as changes.
func (w *PollingWatcher) scan() map[string]time.Time {
	mtimes := map[string]time.Time{}
	for _, path := range w.files {
		if info, err := os.Stat(path); err == nil {
			mtimes[path] = info.ModTime()
		}
	}
	for _, folder := range w.folders {
		_ = filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if info, err := d.Info(); err == nil {
				mtimes[path] = info.ModTime()
			}
			return nil
		})
	}
	return mtimes
}

func (w *PollingWatcher) Close() error { return nil }

// DefaultDebounce is how long NotifyWatcher waits for a burst of events to
// settle before calling its change handler. Editors often save in several
// steps.
const DefaultDebounce = 100 * time.Millisecond

// NotifyWatcher listens for filesystem events.
type NotifyWatcher struct {
	debounce time.Duration
	onChange func()

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	watched map[string]bool
	files   map[string]bool
	folders []string

	// events counts relevant events; checked is its value at the last
	// Check.
	events  atomic.Int64
	checked int64

	done chan struct{}
}

// Option configures a NotifyWatcher.
type Option func(*NotifyWatcher)

// WithOnChange calls fn once a burst of changes has settled. fn runs on its
// own goroutine.
func WithOnChange(fn func()) Option {
	return func(w *NotifyWatcher) {
		w.onChange = fn
	}
}

// WithDebounce sets how long a burst of events may last.
func WithDebounce(d time.Duration) Option {
	return func(w *NotifyWatcher) {
		w.debounce = d
	}
}

// NewNotifyWatcher creates a NotifyWatcher and starts listening.
func NewNotifyWatcher(opts ...Option) (*NotifyWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &NotifyWatcher{
		debounce: DefaultDebounce,
		fsw:      fsw,
		watched:  map[string]bool{},
		files:    map[string]bool{},
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.run()
	return w, nil
}

func (w *NotifyWatcher) run() {
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		close(w.done)
	}()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			// Remove and Rename are how atomic saves show up.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			w.events.Add(1)
			if w.onChange == nil {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.onChange)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("File watcher error: %v", err)
		}
	}
}

// relevant reports whether path is a watched file or lies in a watched
// folder. Directories of watched files are watched too, but only for the
// files themselves.
func (w *NotifyWatcher) relevant(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.files[path] {
		return true
	}
	for _, folder := range w.folders {
		if rel, err := filepath.Rel(folder, path); err == nil && rel != ".." && !strings.HasPrefix(rel, "../") {
			return true
		}
	}
	return false
}

func (w *NotifyWatcher) Update(files, folders []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.files = map[string]bool{}
	w.folders = append([]string(nil), folders...)

	// Directories are watched rather than files so that files replaced by
	// a rename stay watched.
	wanted := map[string]bool{}
	for _, f := range files {
		w.files[f] = true
		wanted[filepath.Dir(f)] = true
	}
	for _, folder := range folders {
		_ = filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
			if err == nil && d.IsDir() {
				wanted[path] = true
			}
			return nil
		})
	}

	for path := range w.watched {
		if !wanted[path] {
			_ = w.fsw.Remove(path)
		}
	}
	for path := range wanted {
		if err := w.fsw.Add(path); err != nil {
			log.Printf("Warning: failed to watch %s: %v", path, err)
		}
	}
	w.watched = wanted
	w.checked = w.events.Load()
	return nil
}

func (w *NotifyWatcher) Check() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	current := w.events.Load()
	changed := current != w.checked
	w.checked = current
	return changed, nil
}

// Close stops listening and waits for the event loop to finish.
func (w *NotifyWatcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
