package core

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/keepmind9/hashbang/internal/logger"
	"github.com/keepmind9/hashbang/pkg/constants"
	"github.com/sirupsen/logrus"
)

// ReloadHandler is told about every reload attempt
type ReloadHandler func(cfg *Config, err error)

// ConfigWatcher reloads the controller config when the file changes.
// It watches the parent directory so editors that replace the file on save
// are picked up too.
type ConfigWatcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	path     string
	control  *Controller
	onReload ReloadHandler
	debounce time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// NewConfigWatcher creates a watcher for path. onReload may be nil.
func NewConfigWatcher(path string, c *Controller, onReload ReloadHandler) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &ConfigWatcher{
		watcher:  watcher,
		path:     abs,
		control:  c,
		onReload: onReload,
		debounce: constants.ConfigReloadDebounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It does not block.
func (w *ConfigWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.running = true
	go w.run(ctx)
	logger.WithField("path", w.path).Info("config-watcher-started")
	return nil
}

// Stop stops the watcher and waits for its goroutine
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		logger.WithField("error", err).Warn("config-watcher-close-failed")
	}
}

func (w *ConfigWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// coalesce bursts of events from a single save
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.WithField("error", err).Warn("config-watcher-error")

		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *ConfigWatcher) reload() {
	cfg, err := w.control.Reload(w.path)
	if err != nil {
		logger.WithFields(logrus.Fields{"path": w.path, "error": err}).Error("config-reload-failed")
	} else {
		logger.WithField("path", w.path).Info("config-reloaded")
	}
	if w.onReload != nil {
		w.onReload(cfg, err)
	}
}
