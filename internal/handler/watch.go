package handler

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events an editor save produces.
const reloadDebounce = 100 * time.Millisecond

// Watch re-parses the templates whenever a file under dir changes, until
// ctx is done. dir must be the OS directory backing the renderer's FS.
// A failed re-parse is logged and the previous templates stay in use.
func (r *Renderer) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create template watcher: %w", err)
	}

	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		return w.Add(p)
	})
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go r.watchLoop(ctx, w)
	return nil
}

func (r *Renderer) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	defer w.Close()

	timer := time.NewTimer(reloadDebounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = w.Add(ev.Name)
				}
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				timer.Reset(reloadDebounce)
			}
		case <-timer.C:
			if err := r.load(); err != nil {
				r.logger.Error("template reload failed", "error", err)
				continue
			}
			r.logger.Info("templates reloaded", "count", len(r.ListTemplates()))
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			r.logger.Warn("template watcher error", "error", err)
		}
	}
}
