// Package configwatcher reloads the device set of a running bridge when its
// configuration file changes.
package configwatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/ledship/pkg/ledship"
	"github.com/bft-labs/ledship/pkg/log"
)

// LoadFunc reads the file at path and builds the device set it describes.
type LoadFunc func(path string) (ledship.DeviceSet, error)

// Plugin watches a configuration file and hands every valid new device set
// to the bridge. Invalid files are logged and the current devices are kept.
type Plugin struct {
	mu sync.Mutex

	path          string
	load          LoadFunc
	retryInterval time.Duration
	debounceDelay time.Duration

	logger   ledship.Logger
	reloader ledship.Reloader
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
	reloads  int
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the configuration file to watch.
	Path string

	// Load builds a device set from the file.
	Load LoadFunc

	// RetryInterval is the delay between attempts to watch a directory
	// that does not exist yet.
	// Default: 5 seconds
	RetryInterval time.Duration

	// DebounceDelay is how long to wait after the last change before
	// reloading. Editors often write a file in several steps.
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with default intervals for path.
func DefaultConfig(path string, load LoadFunc) Config {
	return Config{
		Path:          path,
		Load:          load,
		RetryInterval: 5 * time.Second,
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}

	return &Plugin{
		path:          cfg.Path,
		load:          cfg.Load,
		retryInterval: cfg.RetryInterval,
		debounceDelay: cfg.DebounceDelay,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching the configuration file.
func (p *Plugin) Initialize(ctx context.Context, cfg ledship.PluginConfig) error {
	p.mu.Lock()
	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = log.NewNoopLogger()
	}
	p.reloader = cfg.Reloader
	p.mu.Unlock()

	if p.path == "" || p.load == nil || p.reloader == nil {
		p.logger.Warn("config watcher disabled: no config file or loader")
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("config watcher plugin initialized", log.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx)

	return nil
}

// Shutdown stops the watcher and any pending reload.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

// Reloads returns the number of device sets applied so far.
func (p *Plugin) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

// watchLoop watches the directory holding the file, so that editors
// replacing the file through a rename are seen too.
func (p *Plugin) watchLoop(ctx context.Context) {
	defer p.wg.Done()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Error("config watcher: failed to create watcher", log.Err(err))
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(p.path)
	for {
		err := watcher.Add(dir)
		if err == nil {
			break
		}
		p.logger.Warn("config watcher: failed to watch directory",
			log.String("dir", dir),
			log.Err(err),
			log.Duration("retry", p.retryInterval))
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.retryInterval):
		}
	}

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher: watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}

	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.reload()
	})
}

func (p *Plugin) reload() {
	devices, err := p.load(p.path)
	if err != nil {
		p.logger.Error("config watcher: keeping current devices, config is invalid",
			log.String("path", p.path),
			log.Err(err))
		return
	}

	if err := p.reloader.Reload(devices); err != nil {
		p.logger.Error("config watcher: reload rejected", log.Err(err))
		return
	}

	p.mu.Lock()
	p.reloads++
	p.mu.Unlock()

	p.logger.Info("config watcher: devices reloaded",
		log.Int("text", len(devices.Text)),
		log.Int("binary", len(devices.Binary)))
}

var _ ledship.Plugin = (*Plugin)(nil)
