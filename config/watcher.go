package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/sentinel/frame"
)

// Watcher reloads the [tuning] table of a TOML file whenever the file is
// written or replaced. Only tuning is hot-reloaded; every other key takes
// effect on the next start.
type Watcher struct {
	path    string
	fs      *fsnotify.Watcher
	updates chan frame.Tuning
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewWatcher starts watching path. The parent directory is watched so that
// editors which replace the file by rename are noticed.
func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:    abs,
		fs:      fw,
		updates: make(chan frame.Tuning, 1),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Updates delivers the clamped tuning after each successful reload. Only the
// latest value is kept if the receiver falls behind.
func (w *Watcher) Updates() <-chan frame.Tuning { return w.updates }

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				w.reload()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slogger().Warn("config: watcher error", "err", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	f, err := LoadFile(w.path)
	if err != nil {
		// Editors often write in several steps; keep the last good tuning.
		slogger().Warn("config: reload failed", "path", w.path, "err", err)
		return
	}
	t := f.Tuning.Clamp()
	slogger().Info("config: tuning reloaded", "path", w.path)

	select {
	case w.updates <- t:
	default:
		// Replace the stale pending value.
		select {
		case <-w.updates:
		default:
		}
		select {
		case w.updates <- t:
		default:
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
		w.wg.Wait()
	})
	return err
}
