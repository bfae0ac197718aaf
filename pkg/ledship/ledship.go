package ledship

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bft-labs/ledship/internal/adapters/fs"
	"github.com/bft-labs/ledship/internal/adapters/mqtt"
	"github.com/bft-labs/ledship/internal/adapters/udp"
	"github.com/bft-labs/ledship/internal/app"
	"github.com/bft-labs/ledship/internal/domain"
	"github.com/bft-labs/ledship/internal/ports"
)

// mqttConnectTimeout bounds how long Start waits for the broker. The client
// keeps retrying in the background after that.
const mqttConnectTimeout = 10 * time.Second

// Errors returned by the public API.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrInstanceLocked  = domain.ErrInstanceLocked
	ErrTransport       = domain.ErrTransport
)

// Ledship receives raw RGB frames over UDP and drives the configured LED
// devices. Use New to create an instance, then Start to begin.
type Ledship struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	logger    ports.Logger
	stats     *app.StatsTracker
	emitter   *eventEmitterWrapper
	plugins   []Plugin

	mu         sync.RWMutex
	devices    DeviceSet
	dispatcher *app.Dispatcher
	pipeline   *app.Pipeline
	publisher  ports.Publisher
	sender     ports.DatagramSender
	closers    []io.Closer
	lock       *fs.InstanceLock
	statsRepo  ports.StatsRepository
	cancel     context.CancelFunc
	done       chan struct{}
}

// New creates a bridge with the given configuration.
// The instance is created in StateStopped; call Start to begin.
func New(cfg Config, opts ...Option) (*Ledship, error) {
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if len(cfg.Devices.Text) > 0 && cfg.MQTT.URL == "" && o.publisher == nil {
		return nil, fmt.Errorf("%w: text devices need an mqtt url", domain.ErrInvalidConfig)
	}

	emitter := &eventEmitterWrapper{handler: o.eventHandler}

	var statsRepo ports.StatsRepository
	if cfg.StatusFile != "" {
		statsRepo = fs.NewStatsFileRepository(cfg.StatusFile)
	}

	done := make(chan struct{})
	close(done)

	return &Ledship{
		config:    cfg,
		opts:      o,
		lifecycle: app.NewLifecycle(o.logger, emitter),
		logger:    o.logger,
		stats:     app.NewStatsTracker(cfg.Devices.Len()),
		emitter:   emitter,
		plugins:   o.plugins,
		devices:   cfg.Devices,
		statsRepo: statsRepo,
		done:      done,
	}, nil
}

// Start opens the transports and begins processing frames in the
// background. The provided context bounds the lifetime of the bridge.
func (l *Ledship) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := l.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	// Leftovers from a crashed run.
	if l.cancel != nil {
		l.cancel()
	}
	l.closeTransports()
	l.releaseLock()

	if err := l.open(ctx); err != nil {
		l.closeTransports()
		l.releaseLock()
		_ = l.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.lifecycle.SetCancel(cancel)

	pluginCfg := PluginConfig{Logger: l.logger, Reloader: l}
	for _, p := range l.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			l.logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			cancel()
			l.closeTransports()
			l.releaseLock()
			_ = l.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		l.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}

	l.dispatcher = app.NewDispatcher(
		app.DispatcherConfig{
			ChangeDetection: l.config.ChangeDetection,
			Timeout:         l.config.WLEDTimeout,
		},
		l.devices, l.publisher, l.sender, l.logger, l.stats, l.emitter,
	)

	source := l.opts.source
	if source == nil {
		r, err := udp.Listen(ctx, l.config.UDPBindAddress, l.config.ReceiveBufferSize)
		if err != nil {
			cancel()
			l.shutdownPlugins()
			l.closeTransports()
			l.releaseLock()
			_ = l.lifecycle.TransitionTo(app.StateCrashed, err.Error())
			return err
		}
		l.logger.Info("listening for frames",
			ports.String("addr", r.Addr().String()),
			ports.Int("buffer_size", l.config.ReceiveBufferSize))
		source = r
	}

	l.pipeline = app.NewPipeline(app.PipelineConfig{QueueSize: l.config.QueueSize},
		source, l.dispatcher, l.logger, l.stats)

	done := make(chan struct{})
	l.done = done
	pipeline := l.pipeline

	l.lifecycle.Go("pipeline", func() {
		defer close(done)

		if err := l.lifecycle.TransitionTo(app.StateRunning, "pipeline starting"); err != nil {
			l.logger.Error("failed to transition to running", ports.Err(err))
			_ = source.Close()
			return
		}

		if err := pipeline.Run(runCtx); err != nil {
			l.logger.Error("pipeline error", ports.Err(err))
			_ = l.lifecycle.TransitionTo(app.StateCrashed, err.Error())
			cancel()
			return
		}
		if runCtx.Err() == nil {
			l.logger.Info("frame source exhausted")
		}
	})

	if l.statsRepo != nil {
		l.lifecycle.Go("status", func() { l.writeStatusLoop(runCtx) })
	}

	return nil
}

// open acquires the instance lock and connects the transports the device
// set needs. Called with l.mu held.
func (l *Ledship) open(ctx context.Context) error {
	if l.config.LockFile != "" {
		lock := fs.NewInstanceLock(l.config.LockFile)
		if err := lock.Acquire(); err != nil {
			return err
		}
		l.lock = lock
	}

	l.publisher = l.opts.publisher
	if l.publisher == nil && l.config.MQTT.URL != "" {
		p := mqtt.NewPublisher(mqtt.Config{
			URL:      l.config.MQTT.URL,
			ClientID: l.config.MQTT.ClientID,
			User:     l.config.MQTT.User,
			Password: l.config.MQTT.Password,
			QoS:      l.config.MQTT.QoS,
		}, l.logger)

		connectCtx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
		err := p.Connect(connectCtx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				_ = p.Close()
				return err
			}
			l.logger.Warn("mqtt broker not reachable yet, retrying in background",
				ports.String("broker", l.config.MQTT.URL))
		}
		l.publisher = p
		l.closers = append(l.closers, p)
	}

	l.sender = l.opts.sender
	if l.sender == nil && len(l.devices.Binary) > 0 {
		s, err := udp.NewSender(ctx, l.config.SendBindAddress)
		if err != nil {
			return err
		}
		l.sender = s
		l.closers = append(l.closers, s)
	}

	return nil
}

// Stop cancels processing, waits for the workers, writes a final status
// snapshot and shuts plugins down.
// Returns nil on graceful shutdown, ErrShutdownTimeout if forced.
func (l *Ledship) Stop() error {
	l.mu.Lock()

	if !l.lifecycle.CanStop() {
		l.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := l.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		l.mu.Unlock()
		return err
	}
	if l.cancel != nil {
		l.cancel()
	}
	l.mu.Unlock()

	err := l.lifecycle.WaitWithTimeout(app.ShutdownTimeout)

	l.mu.Lock()
	l.saveStats(context.Background())
	l.shutdownPlugins()
	l.closeTransports()
	l.releaseLock()
	l.mu.Unlock()

	if err != nil {
		_ = l.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = l.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (l *Ledship) Status() State {
	return convertState(l.lifecycle.State())
}

// Done is closed when the frame pipeline exits, either because the bridge
// is stopping or because the frame source ended.
func (l *Ledship) Done() <-chan struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.done
}

// Stats returns a snapshot of the bridge counters.
func (l *Ledship) Stats() Stats {
	return l.stats.Snapshot()
}

// Devices returns the device set currently in use.
func (l *Ledship) Devices() DeviceSet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.devices
}

// Reload replaces the device set. On a running bridge the change applies
// from the next frame. A set needing a transport the bridge was not
// started with is rejected.
func (l *Ledship) Reload(devices DeviceSet) error {
	if devices.Len() == 0 {
		return fmt.Errorf("%w: no devices configured", domain.ErrInvalidConfig)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	running := l.dispatcher != nil && !l.lifecycle.CanStart()
	if running {
		if len(devices.Text) > 0 && l.publisher == nil {
			return fmt.Errorf("%w: text devices need an mqtt connection", domain.ErrInvalidConfig)
		}
		if len(devices.Binary) > 0 && l.sender == nil {
			return fmt.Errorf("%w: binary devices need a datagram sender; restart to add the first one", domain.ErrInvalidConfig)
		}
		l.dispatcher.SetDevices(devices)
	} else if len(devices.Text) > 0 && l.config.MQTT.URL == "" && l.opts.publisher == nil {
		return fmt.Errorf("%w: text devices need an mqtt url", domain.ErrInvalidConfig)
	}
	l.devices = devices

	l.logger.Info("devices reloaded",
		ports.Int("text", len(devices.Text)),
		ports.Int("binary", len(devices.Binary)))
	return nil
}

func (l *Ledship) writeStatusLoop(ctx context.Context) {
	ticker := time.NewTicker(l.config.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.saveStats(ctx)
		}
	}
}

func (l *Ledship) saveStats(ctx context.Context) {
	if l.statsRepo == nil {
		return
	}
	if err := l.statsRepo.Save(ctx, l.stats.Snapshot()); err != nil {
		l.logger.Warn("failed to save status file", ports.Err(err))
	}
}

// shutdownPlugins shuts plugins down in reverse order. Called with l.mu held.
func (l *Ledship) shutdownPlugins() {
	ctx := context.Background()
	for i := len(l.plugins) - 1; i >= 0; i-- {
		p := l.plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			l.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
		} else {
			l.logger.Info("plugin shutdown complete", ports.String("plugin", p.Name()))
		}
	}
}

// closeTransports closes transports created by the bridge. Called with l.mu held.
func (l *Ledship) closeTransports() {
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			l.logger.Warn("failed to close transport", ports.Err(err))
		}
	}
	l.closers = nil
	l.publisher = nil
	l.sender = nil
}

// releaseLock drops the instance lock. Called with l.mu held.
func (l *Ledship) releaseLock() {
	if l.lock == nil {
		return
	}
	if err := l.lock.Release(); err != nil {
		l.logger.Warn("failed to release lock", ports.String("path", l.lock.Path()), ports.Err(err))
	}
	l.lock = nil
}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnFrameDispatched(r app.DispatchResult) {
	if e.handler == nil {
		return
	}
	e.handler.OnFrameDispatched(FrameDispatchedEvent{
		Seq:         r.Seq,
		TextSkipped: r.TextSkipped,
		Devices:     r.Devices,
		Failed:      r.Failed,
		Packets:     r.Packets,
		Duration:    r.Duration,
	})
}

func (e *eventEmitterWrapper) OnDispatchError(device string, err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnDispatchError(DispatchErrorEvent{Device: device, Error: err})
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}
