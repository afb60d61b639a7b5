package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Preferences are the user's display settings. The file is JSON that may
// carry // line comments.
type Preferences struct {
	FontFace     string `json:"font_face"`
	FontSize     int    `json:"font_size"`
	PromptOnQuit bool   `json:"prompt_on_quit"`
	LocalEcho    bool   `json:"local_echo"`
}

// DefaultPreferences returns the settings used when no file exists
func DefaultPreferences() Preferences {
	return Preferences{
		FontFace:     "monospace",
		FontSize:     12,
		PromptOnQuit: true,
	}
}

// LoadPreferences reads path. Keys missing from the file keep their defaults.
func LoadPreferences(path string) (Preferences, error) {
	prefs := DefaultPreferences()

	data, err := os.ReadFile(path)
	if err != nil {
		return prefs, fmt.Errorf("failed to read preferences: %w", err)
	}

	if err := json.Unmarshal(StripLineComments(data), &prefs); err != nil {
		return DefaultPreferences(), fmt.Errorf("failed to parse preferences %s: %w", path, err)
	}
	if prefs.FontSize <= 0 {
		return DefaultPreferences(), fmt.Errorf("preferences: font_size must be positive, got %d", prefs.FontSize)
	}

	return prefs, nil
}

// StripLineComments removes // comments that are outside string literals.
func StripLineComments(data []byte) []byte {
	out := make([]byte, 0, len(data))
	inString, escaped := false, false

	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
		} else if c == '/' && i+1 < len(data) && data[i+1] == '/' {
			for i < len(data) && data[i] != '\n' {
				i++
			}
			if i < len(data) {
				out = append(out, '\n')
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

// PreferencesWatcher reloads a preferences file whenever it changes.
type PreferencesWatcher struct {
	path     string
	logger   *zap.Logger
	onReload func(Preferences)
	debounce time.Duration

	watcher   *fsnotify.Watcher
	closeOnce sync.Once
	done      chan struct{}
}

// WatchPreferences watches path and calls onReload with every successfully
// parsed version. A version that fails to parse is logged and skipped so
// the caller keeps the last good one. The directory is watched rather than
// the file so editors that replace the file are followed.
func WatchPreferences(path string, logger *zap.Logger, onReload func(Preferences)) (*PreferencesWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	w := &PreferencesWatcher{
		path:     abs,
		logger:   logger.With(zap.String("component", "preferences"), zap.String("path", abs)),
		onReload: onReload,
		debounce: 100 * time.Millisecond,
		watcher:  fsw,
		done:     make(chan struct{}),
	}
	go w.run()

	return w, nil
}

func (w *PreferencesWatcher) run() {
	defer close(w.done)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				if timer != nil {
					timer.Stop()
				}
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// editors often write in several steps
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Preferences watcher error", zap.Error(err))

		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *PreferencesWatcher) reload() {
	prefs, err := LoadPreferences(w.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			w.logger.Debug("Preferences file went away", zap.Error(err))
			return
		}
		w.logger.Warn("Ignoring invalid preferences", zap.Error(err))
		return
	}
	w.logger.Info("Preferences reloaded")
	w.onReload(prefs)
}

// Close stops watching and waits for the watch goroutine to exit.
func (w *PreferencesWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.watcher.Close()
		<-w.done
	})
	return err
}
