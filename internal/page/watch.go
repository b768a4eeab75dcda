package page

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pagebrain/internal/logging"
)

// Watcher reports changes to one local document. Editors often replace files
// instead of writing them, so the parent directory is watched.
type Watcher struct {
	path     string
	onChange func()
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for path. onChange runs on the watcher
// goroutine after a quiet period following the last change.
func NewWatcher(path string, onChange func()) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:     abs,
		onChange: onChange,
		debounce: 200 * time.Millisecond,
	}, nil
}

// Start begins watching. It is non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		_ = fw.Close()
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	w.watcher = fw
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.run(ctx, fw, w.stopCh, w.doneCh)

	logging.Browser("Watching %s for changes", w.path)
	return nil
}

// Stop ends the watch and waits for the goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stopCh, doneCh, fw := w.stopCh, w.doneCh, w.watcher
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
	_ = fw.Close()
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logging.BrowserDebug("Watcher: %s %s", event.Op, event.Name)
			pending = time.After(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logging.BrowserWarn("Watcher error: %v", err)
		case <-pending:
			pending = nil
			w.onChange()
		}
	}
}
