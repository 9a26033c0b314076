package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the event bursts editors produce when saving.
const watchDebounce = 200 * time.Millisecond

// Watch monitors the config file at path and invokes onChange with the
// freshly loaded (and validated) configuration after every rewrite.
// Editors typically replace the file via rename, so the parent directory
// is watched rather than the file itself. Reloads that fail to parse or
// validate are dropped; the previous configuration stays in effect.
//
// The returned stop function ends the watch.
func Watch(path string, onChange func(*Config)) (func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	base := filepath.Base(path)
	go func() {
		var (
			timer  *time.Timer
			reload <-chan time.Time
		)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
					reload = timer.C
				} else {
					timer.Reset(watchDebounce)
				}
			case <-reload:
				timer, reload = nil, nil
				cfg, err := Load(path)
				if err != nil {
					continue
				}
				onChange(cfg)
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return func() { _ = w.Close() }, nil
}
