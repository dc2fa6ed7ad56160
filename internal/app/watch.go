package app

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileWatcher polls a file and calls back once when it changes. The station
// uses it on its configuration file, which is only read at startup, to tell
// the operator a restart is needed.
type FileWatcher struct {
	path          string
	baseline      time.Time
	checkInterval time.Duration
	onChange      func(path string)

	mu     sync.Mutex
	stopCh chan struct{}
}

// NewFileWatcher watches path. Returns nil if the file cannot be found.
func NewFileWatcher(path string, checkInterval time.Duration) *FileWatcher {
	// Editors may replace a symlink target rather than the file.
	if real, err := filepath.EvalSymlinks(path); err == nil {
		path = real
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	return &FileWatcher{
		path:          path,
		baseline:      info.ModTime(),
		checkInterval: checkInterval,
	}
}

// OnChange sets the callback. It runs on the watcher goroutine.
func (w *FileWatcher) OnChange(callback func(path string)) {
	w.onChange = callback
}

// Start begins watching in a background goroutine.
func (w *FileWatcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopCh != nil {
		return
	}
	w.stopCh = make(chan struct{})
	go w.watchLoop(w.stopCh)
}

// Stop stops the watcher goroutine.
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
}

func (w *FileWatcher) watchLoop(stop chan struct{}) {
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if w.Changed() && w.onChange != nil {
				w.onChange(w.path)
				// Only trigger once
				return
			}
		}
	}
}

// Changed reports whether the file was modified since the baseline.
func (w *FileWatcher) Changed() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		return false
	}
	return info.ModTime().After(w.baseline)
}

// Path returns the watched file.
func (w *FileWatcher) Path() string {
	return w.path
}

// ResetBaseline accepts the current contents. Call it when the operator
// declines a restart to avoid repeated notifications.
func (w *FileWatcher) ResetBaseline() {
	if info, err := os.Stat(w.path); err == nil {
		w.baseline = info.ModTime()
	}
}
