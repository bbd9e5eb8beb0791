package directory

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const reloadDelay = 50 * time.Millisecond

// Watcher reloads a Memory directory whenever its source file changes.
type Watcher struct {
	fw      *fsnotify.Watcher
	path    string
	mem     *Memory
	logger  *log.Logger
	done    chan struct{}
	timer   *time.Timer
	stopped bool
	hooks   []func()
	mu      sync.Mutex
}

// Watch loads path into mem and keeps it in sync. The parent directory is
// watched rather than the file, since editors often save by renaming.
func Watch(path string, mem *Memory, logger *log.Logger) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	names, err := LoadFile(absPath)
	if err != nil {
		return nil, err
	}
	mem.Replace(names)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(absPath)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		fw:     fw,
		path:   absPath,
		mem:    mem,
		logger: logger,
		done:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule()
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warnf("Directory watcher error: %v", err)

		case <-w.done:
			return
		}
	}
}

// schedule reloads once writes to the file have been quiet for reloadDelay.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDelay, w.reload)
}

// OnReload registers fn to run after every successful reload, typically to
// purge results cached from the previous dataset.
func (w *Watcher) OnReload(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hooks = append(w.hooks, fn)
}

func (w *Watcher) reload() {
	names, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warnf("Keeping previous directory, reload failed: %v", err)
		return
	}
	w.mem.Replace(names)
	w.logger.Infof("Reloaded %d entries from %s", len(names), w.path)

	w.mu.Lock()
	hooks := w.hooks
	w.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// Stop ends monitoring. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.done)
	return w.fw.Close()
}
