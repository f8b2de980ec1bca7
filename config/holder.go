// Package config provides configuration loading and hot reload.
package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Holder keeps the current Config and swaps it on reload.
type Holder struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	onChange []func(*Config)
	onReload func(error)
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHolder loads path and holds the result.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	return &Holder{
		config: cfg,
		path:   absPath,
		logger: logger,
		stopCh: make(chan struct{}),
	}, nil
}

// Get returns the current configuration.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// Reload loads the file again and swaps it in. On error the current
// config is kept and listeners are not called.
func (h *Holder) Reload() error {
	newCfg, err := Load(h.path)

	h.mu.RLock()
	observe := h.onReload
	h.mu.RUnlock()
	if observe != nil {
		observe(err)
	}

	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	oldCfg := h.config
	h.config = newCfg
	listeners := slices.Clone(h.onChange)
	h.mu.Unlock()

	h.logChanges(oldCfg, newCfg)
	for _, fn := range listeners {
		fn(newCfg)
	}

	h.logger.Info().Str("path", h.path).Msg("configuration reloaded")
	return nil
}

// OnChange registers a callback to be called when config changes.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// OnReload registers fn to observe the outcome of every reload attempt.
func (h *Holder) OnReload(fn func(error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onReload = fn
}

// Path returns the absolute path of the config file.
func (h *Holder) Path() string { return h.path }

// WatchFile reloads whenever the config file is written or replaced.
// The directory is watched so editors that save by rename are seen too.
func (h *Holder) WatchFile() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(h.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(h.path), err)
	}
	h.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if h.isConfigWrite(event) {
					h.reloadFrom("file " + event.Op.String())
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				h.logger.Error().Err(err).Msg("file watcher error")
			case <-h.stopCh:
				return
			}
		}
	}()

	h.logger.Info().Str("path", h.path).Msg("watching config file")
	return nil
}

// WatchSignals reloads on SIGHUP until Stop is called.
func (h *Holder) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		defer signal.Stop(sigCh)
		for {
			select {
			case <-sigCh:
				h.reloadFrom("SIGHUP")
			case <-h.stopCh:
				return
			}
		}
	}()

	h.logger.Info().Msg("listening for SIGHUP")
}

// Stop ends file and signal watching. It is safe to call more than once.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if h.watcher != nil {
			h.watcher.Close()
		}
	})
}

func (h *Holder) isConfigWrite(event fsnotify.Event) bool {
	return filepath.Base(event.Name) == filepath.Base(h.path) &&
		event.Op&(fsnotify.Write|fsnotify.Create) != 0
}

func (h *Holder) reloadFrom(trigger string) {
	h.logger.Debug().Str("trigger", trigger).Msg("config reload triggered")
	if err := h.Reload(); err != nil {
		h.logger.Error().Err(err).Str("trigger", trigger).Msg("config reload failed")
	}
}

func (h *Holder) logChanges(old, new *Config) {
	if old.Logging.Level != new.Logging.Level {
		h.logger.Info().
			Str("old", old.Logging.Level).
			Str("new", new.Logging.Level).
			Msg("log level changed")
	}

	if old.Storage.MaxDepth != new.Storage.MaxDepth {
		h.logger.Info().
			Int("old", old.Storage.MaxDepth).
			Int("new", new.Storage.MaxDepth).
			Msg("max depth changed, applies after restart")
	}

	if old.Schemas != new.Schemas {
		h.logger.Warn().
			Str("old", old.Schemas.URI+"@"+old.Schemas.Version).
			Str("new", new.Schemas.URI+"@"+new.Schemas.Version).
			Msg("schema location changed, loaded schemas are kept until restart")
	}

	if old.Database != new.Database || old.Redis != new.Redis {
		h.logger.Warn().Msg("database settings changed, applies after restart")
	}
}

// ReloadableFields returns which fields can be changed without restart.
func ReloadableFields() []string {
	return []string{
		"logging.level",
	}
}

// NonReloadableFields returns which fields require a restart.
func NonReloadableFields() []string {
	return []string{
		"schemas.uri",
		"schemas.version",
		"database.driver",
		"database.dsn",
		"redis.addr",
		"storage.max_depth",
		"server.host",
		"server.port",
		"metrics.enabled",
		"metrics.path",
		"logging.format",
	}
}
