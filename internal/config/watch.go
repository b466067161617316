package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/chartglass/overlay/internal/render"
)

// LoadSettings reads render settings from a JSON file. Missing file returns
// defaults; a malformed file is an error so a typo never silently reverts the
// overlay to stock styling.
func LoadSettings(path string) (render.Settings, error) {
	s := render.DefaultSettings()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return render.DefaultSettings(), err
	}
	return s, nil
}

// WatchSettings re-reads the settings file on every write and invokes apply
// with the parsed result. Editors replace files rather than writing in place,
// so the watch is on the parent directory. Returns a stop function.
func WatchSettings(path string, apply func(render.Settings)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Clean(path)
	done := make(chan struct{})

	go func() {
		var pending <-chan time.Time
		for {
			select {
			case <-done:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				// Debounce: editors fire several events per save.
				pending = time.After(150 * time.Millisecond)
			case <-pending:
				pending = nil
				s, err := LoadSettings(path)
				if err != nil {
					slog.Warn("settings reload skipped", "path", path, "error", err)
					continue
				}
				slog.Info("settings reloaded", "path", path)
				apply(s)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("settings watcher error", "error", err)
			}
		}
	}()

	stop := func() {
		close(done)
		watcher.Close()
	}
	return stop, nil
}
