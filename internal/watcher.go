package internal

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches an inbox directory for newly dropped media files and
// reports them once their size has settled, so half-copied files are not
// imported mid-transfer.
type Watcher struct {
	watcher *fsnotify.Watcher
	kinds   *MediaKinds
	files   chan string
	errors  chan error
	done    chan struct{}

	mu      sync.Mutex
	pending map[string]bool
}

// settleDelay is how long a file's size must stay unchanged before it is
// considered fully written.
const settleDelay = 2 * time.Second

// NewWatcher creates a watcher over inboxDir and its subdirectories.
func NewWatcher(inboxDir string, kinds *MediaKinds) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher: fsWatcher,
		kinds:   kinds,
		files:   make(chan string, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
		pending: make(map[string]bool),
	}

	if err := w.addRecursive(inboxDir); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	go w.processEvents()
	return w, nil
}

// addRecursive adds a directory and all its subdirectories to the watcher.
func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					w.watcher.Add(event.Name)
					continue
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !w.kinds.IsMedia(event.Name) {
				continue
			}

			w.mu.Lock()
			inFlight := w.pending[event.Name]
			w.pending[event.Name] = true
			w.mu.Unlock()
			if !inFlight {
				go w.settleAndReport(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				// Error channel is full, drop error
			}

		case <-w.done:
			return
		}
	}
}

// settleAndReport waits until the file size stops changing, then emits.
func (w *Watcher) settleAndReport(path string) {
	defer func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
	}()

	var lastSize int64 = -1
	for {
		select {
		case <-w.done:
			return
		case <-time.After(settleDelay):
		}

		fi, err := os.Stat(path)
		if err != nil {
			return // removed before it settled
		}
		if fi.Size() == lastSize {
			break
		}
		lastSize = fi.Size()
	}

	select {
	case w.files <- path:
	case <-w.done:
	}
}

// Files returns settled media files ready to import.
func (w *Watcher) Files() <-chan string { return w.files }

func (w *Watcher) Errors() <-chan error { return w.errors }

func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
