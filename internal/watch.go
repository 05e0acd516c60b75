package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	tt "github.com/gnoverse/impact/internal/types"
)

type watchState struct {
	watcher *fsnotify.Watcher
	mu      sync.Mutex
	pending map[string]*time.Timer
}

// StartWatching registers dirs and their subdirectories for change
// notifications. Events are delivered by Watch.
func (e *Engine) StartWatching(dirs ...string) error {
	if e.watch != nil {
		return errors.New("already watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}
	for _, dir := range dirs {
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return watcher.Add(path)
			}
			return nil
		})
		if err != nil {
			watcher.Close()
			return fmt.Errorf("error adding directory to watcher: %w", err)
		}
	}

	e.watch = &watchState{watcher: watcher, pending: make(map[string]*time.Timer)}
	return nil
}

// StopWatching releases the watcher.
func (e *Engine) StopWatching() error {
	if e.watch == nil {
		return errors.New("not watching")
	}
	w := e.watch
	e.watch = nil

	w.mu.Lock()
	for name, t := range w.pending {
		t.Stop()
		delete(w.pending, name)
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

// Watch re-verifies program files as they are written and hands each new
// report to report, one at a time. Bursts of writes to the same file are
// merged. Watch returns when ctx is done.
func (e *Engine) Watch(ctx context.Context, report func(tt.Report)) error {
	w := e.watch
	if w == nil {
		return errors.New("not watching")
	}

	var reportMu sync.Mutex
	for {
		select {
		case <-ctx.Done():
			return e.StopWatching()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !IsProgramFile(event.Name) {
				continue
			}
			w.schedule(event.Name, e.opts.Debounce, func(name string) {
				r, err := e.Run(ctx, name)
				if err != nil {
					e.logger.Error("Error verifying file", zap.String("file", name), zap.Error(err))
					r = tt.Report{Filename: name, Status: tt.StatusError, Error: err.Error()}
				}
				reportMu.Lock()
				defer reportMu.Unlock()
				report(r)
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

// schedule runs fn for name once no further event arrived for delay.
func (w *watchState) schedule(name string, delay time.Duration, fn func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[name]; ok {
		t.Stop()
	}
	w.pending[name] = time.AfterFunc(delay, func() {
		w.mu.Lock()
		delete(w.pending, name)
		w.mu.Unlock()
		fn(name)
	})
}
