package config

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay lets an editor finish writing before the file is re-read.
const settleDelay = 50 * time.Millisecond

// Watch calls onChange whenever the file at path is written or re-created, until
// ctx is done. The parent directory is watched so that editors which replace the
// file atomically are handled. When fsnotify is unavailable Watch polls the
// file's modification time once per pollInterval instead.
func Watch(ctx context.Context, path string, pollInterval time.Duration, onChange func()) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("Config watcher: fsnotify not available, falling back to polling: %v", err)
		watchWithPolling(ctx, absPath, pollInterval, onChange)
		return
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.Printf("Config watcher: failed to close watcher: %v", err)
		}
	}()

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		log.Printf("Config watcher: failed to watch %s, falling back to polling: %v", filepath.Dir(absPath), err)
		watchWithPolling(ctx, absPath, pollInterval, onChange)
		return
	}

	log.Printf("Config watcher started for %s (using fsnotify)", absPath)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				log.Println("Config watcher: fsnotify closed, switching to polling")
				watchWithPolling(ctx, absPath, pollInterval, onChange)
				return
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				time.Sleep(settleDelay)
				drain(watcher.Events, absPath)
				onChange()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				log.Println("Config watcher: fsnotify error channel closed, switching to polling")
				watchWithPolling(ctx, absPath, pollInterval, onChange)
				return
			}
			log.Printf("Config watcher error: %v", err)
		}
	}
}

// drain discards events for path that queued up while settling, so one save
// triggers one reload.
func drain(events <-chan fsnotify.Event, path string) {
	for {
		select {
		case event, ok := <-events:
			if !ok || filepath.Clean(event.Name) != path {
				return
			}
		default:
			return
		}
	}
}

func watchWithPolling(ctx context.Context, path string, interval time.Duration, onChange func()) {
	log.Printf("Config watcher started for %s (using polling, %s interval)", path, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastMod time.Time
	if info, err := os.Stat(path); err == nil {
		lastMod = info.ModTime()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				continue // File may be mid-replace; keep polling
			}
			if info.ModTime().After(lastMod) {
				lastMod = info.ModTime()
				time.Sleep(settleDelay)
				onChange()
			}
		}
	}
}
