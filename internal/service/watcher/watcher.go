// Package watcher re-applies the capture resolution when the config file changes.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"kiosk/internal/config"
	"kiosk/internal/logger"
)

// DefaultDebounce collapses the burst of events editors produce on save.
const DefaultDebounce = 100 * time.Millisecond

// Resizer is the scanner operation driven by config changes.
type Resizer interface {
	SetResolution(width, height int) error
}

// ConfigWatcher monitors the config file via fsnotify.
type ConfigWatcher struct {
	cfg     *config.Config
	changed map[string]bool
	target  Resizer
	logger  *logger.Logger
	delay   time.Duration

	mu       sync.Mutex
	debounce *time.Timer
	width    int
	height   int
}

// New creates a watcher for cfg.ConfigFile. changed holds the flags set on the
// command line, which the file cannot override.
func New(cfg *config.Config, changed map[string]bool, target Resizer, log *logger.Logger) *ConfigWatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &ConfigWatcher{
		cfg:     cfg,
		changed: changed,
		target:  target,
		logger:  log,
		delay:   DefaultDebounce,
		width:   cfg.FrameWidth,
		height:  cfg.FrameHeight,
	}
}

// Run watches the directory holding the config file until ctx is done.
// The directory is watched so editors that replace the file are still seen.
func (w *ConfigWatcher) Run(ctx context.Context) error {
	if w.cfg.ConfigFile == "" {
		return fmt.Errorf("no config file to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.cfg.ConfigFile)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	name := filepath.Base(w.cfg.ConfigFile)
	w.logger.Info("Watching %s for resolution changes", w.cfg.ConfigFile)

	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.debounceApply()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warning("Config watcher error: %v", err)
		}
	}
}

func (w *ConfigWatcher) debounceApply() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.delay, w.apply)
}

func (w *ConfigWatcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
}

// apply reloads the file and forwards a resolution change to the scanner.
func (w *ConfigWatcher) apply() {
	next, err := config.Reload(w.cfg, w.cfg.ConfigFile, w.changed)
	if err != nil {
		w.logger.Warning("Ignoring config change: %v", err)
		return
	}

	w.mu.Lock()
	same := next.FrameWidth == w.width && next.FrameHeight == w.height
	w.mu.Unlock()
	if same {
		return
	}

	if err := w.target.SetResolution(next.FrameWidth, next.FrameHeight); err != nil {
		w.logger.Error("Apply resolution %dx%d: %v", next.FrameWidth, next.FrameHeight, err)
		return
	}

	w.mu.Lock()
	w.width, w.height = next.FrameWidth, next.FrameHeight
	w.mu.Unlock()
	w.logger.Info("Resolution changed to %dx%d", next.FrameWidth, next.FrameHeight)
}
