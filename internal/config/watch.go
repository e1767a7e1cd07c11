package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"payguard/internal/logger"

	"github.com/fsnotify/fsnotify"
)

// ChangeListener receives every config that reloads cleanly.
type ChangeListener func(*Config)

// Watcher reloads the config whenever the root file or any file it includes
// changes. A reload that fails to decode or validate is logged and the
// previous config stays current.
type Watcher struct {
	path string
	fs   *fsnotify.Watcher

	mu        sync.RWMutex
	current   *Config
	files     map[string]bool
	dirs      map[string]bool
	listeners []ChangeListener

	done      chan struct{}
	closeOnce sync.Once
}

// Watch loads path and starts watching it together with its includes.
// Call Close to stop watching.
func Watch(path string) (*Watcher, error) {
	w, err := newWatcher(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	w.fs = fsw
	if err := w.trackDirs(); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	go w.loop()
	return w, nil
}

func newWatcher(path string) (*Watcher, error) {
	cfg, files, err := load(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:    path,
		current: cfg,
		files:   fileSet(files),
		dirs:    make(map[string]bool),
		done:    make(chan struct{}),
	}, nil
}

func fileSet(files []string) map[string]bool {
	out := make(map[string]bool, len(files))
	for _, f := range files {
		out[filepath.Clean(f)] = true
	}
	return out
}

// trackDirs watches the directory of every tracked file. Directories rather
// than files are watched so editors that replace files by rename still fire.
func (w *Watcher) trackDirs() error {
	if w.fs == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for f := range w.files {
		dir := filepath.Dir(f)
		if w.dirs[dir] {
			continue
		}
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	return nil
}

func (w *Watcher) tracks(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.files[filepath.Clean(abs)]
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case evt, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) && !evt.Has(fsnotify.Remove) {
				continue
			}
			if !w.tracks(evt.Name) {
				continue
			}
			logger.Debugf("[config] %s changed (%s)", evt.Name, evt.Op)
			w.reload()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logger.Warnf("[config] watch error: %v", err)
		}
	}
}

// Current returns the last config that loaded cleanly.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers fn for future reloads.
func (w *Watcher) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		if w.fs != nil {
			err = w.fs.Close()
		}
	})
	return err
}

func (w *Watcher) reload() bool {
	cfg, files, err := load(w.path)
	if err != nil {
		logger.Errorf("[config] reload of %s failed, keeping previous config: %v", w.path, err)
		return false
	}
	w.mu.Lock()
	w.current = cfg
	w.files = fileSet(files)
	listeners := append([]ChangeListener(nil), w.listeners...)
	w.mu.Unlock()
	if err := w.trackDirs(); err != nil {
		logger.Warnf("[config] %v", err)
	}
	logger.Infof("[config] reloaded %s (%s)", w.path, strings.Join(files, ", "))
	for _, fn := range listeners {
		fn(cfg)
	}
	return true
}
