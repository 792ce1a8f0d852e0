package toolmask

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a state machine file into a System whenever it changes.
type Watcher struct {
	sys     *System
	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Watch loads path into sys and keeps it in sync until Close.
// The parent directory is watched so editors that replace the file are seen.
func Watch(sys *System, path string) (*Watcher, error) {
	cfg, err := LoadStateMachine(path)
	if err != nil {
		return nil, err
	}
	sys.ConfigureStateMachine(cfg)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	w := &Watcher{
		sys:     sys,
		path:    filepath.Clean(path),
		watcher: fw,
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.sys.logger.Warn("state machine watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadStateMachine(w.path)
	if err != nil {
		// Keep the last good definition; partial writes are common.
		w.sys.logger.Warn("state machine reload failed", "path", w.path, "error", err)
		return
	}
	w.sys.ReloadStateMachine(cfg)
}

// Close stops watching.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	return w.watcher.Close()
}
