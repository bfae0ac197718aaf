package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bft-labs/ledship/internal/domain"
	"github.com/bft-labs/ledship/internal/ports"
	"github.com/bft-labs/ledship/pkg/mapping"
	"github.com/bft-labs/ledship/pkg/protocol"
)

// DispatchState is the state of a Dispatcher.
type DispatchState int32

const (
	// DispatchIdle means the dispatcher is waiting for the next frame.
	DispatchIdle DispatchState = iota
	// DispatchActive means a frame is being sent to the devices.
	DispatchActive
)

// String returns a human-readable representation of the state.
func (s DispatchState) String() string {
	switch s {
	case DispatchIdle:
		return "Idle"
	case DispatchActive:
		return "Dispatching"
	default:
		return "Unknown"
	}
}

// DispatcherConfig contains configuration for the dispatcher.
type DispatcherConfig struct {
	// ChangeDetection skips text devices when a frame equals the previous one.
	ChangeDetection bool

	// Timeout is the WLED realtime timeout byte, in seconds.
	Timeout byte
}

// DispatchResult describes one Dispatch call.
type DispatchResult struct {
	Seq uint64

	// TextSkipped is set when the change gate suppressed the text devices.
	TextSkipped bool

	// Devices is the number of devices that received the frame.
	Devices int

	// Failed is the number of devices skipped because of a mapping error.
	Failed int

	// Packets is the number of publishes and datagrams written.
	Packets int

	Duration time.Duration
}

// DispatchEmitter is notified about dispatch outcomes.
type DispatchEmitter interface {
	OnFrameDispatched(result DispatchResult)
	OnDispatchError(deviceID string, err error)
}

// Dispatcher remaps and encodes one frame for every configured device and
// hands the packets to the transports. Devices are served one after another.
//
// Dispatch must be called from a single goroutine. SetDevices and State may
// be called from any goroutine.
type Dispatcher struct {
	config    DispatcherConfig
	publisher ports.Publisher
	sender    ports.DatagramSender
	logger    ports.Logger
	stats     *StatsTracker
	emitter   DispatchEmitter

	devices   atomic.Pointer[domain.DeviceSet]
	resetGate atomic.Bool
	state     atomic.Int32
	gate      changeGate
}

// NewDispatcher creates a dispatcher serving devices.
// publisher may be nil when there are no text devices, sender when there are
// no binary devices.
func NewDispatcher(
	config DispatcherConfig,
	devices domain.DeviceSet,
	publisher ports.Publisher,
	sender ports.DatagramSender,
	logger ports.Logger,
	stats *StatsTracker,
	emitter DispatchEmitter,
) *Dispatcher {
	if stats == nil {
		stats = NewStatsTracker(devices.Len())
	} else {
		stats.setDevices(devices.Len())
	}
	d := &Dispatcher{
		config:    config,
		publisher: publisher,
		sender:    sender,
		logger:    logger,
		stats:     stats,
		emitter:   emitter,
	}
	d.devices.Store(&devices)
	return d
}

// State returns the current dispatch state.
func (d *Dispatcher) State() DispatchState {
	return DispatchState(d.state.Load())
}

// Devices returns the device set used for the next frame.
func (d *Dispatcher) Devices() domain.DeviceSet {
	return *d.devices.Load()
}

// SetDevices replaces the device set. The change takes effect at the next
// frame, which also bypasses the change gate.
func (d *Dispatcher) SetDevices(devices domain.DeviceSet) {
	d.devices.Store(&devices)
	d.resetGate.Store(true)
	d.stats.setDevices(devices.Len())
}

// Dispatch sends frame to every device.
//
// A device whose mappings do not fit the frame is logged and skipped. A
// transport failure abandons the remaining devices and is returned wrapped
// in domain.ErrTransport. Nothing is retried.
func (d *Dispatcher) Dispatch(ctx context.Context, frame domain.Frame) (DispatchResult, error) {
	d.state.Store(int32(DispatchActive))
	defer d.state.Store(int32(DispatchIdle))

	start := time.Now()
	set := d.devices.Load()
	if d.resetGate.Swap(false) {
		d.gate.reset()
	}

	res := DispatchResult{Seq: frame.Seq}

	if len(set.Text) > 0 {
		if d.config.ChangeDetection && !d.gate.changed(frame.Data) {
			res.TextSkipped = true
			d.stats.frameUnchanged()
			d.logger.Debug("frame unchanged, skipping text devices", ports.Uint64("seq", frame.Seq))
		} else if err := d.dispatchAll(ctx, set.Text, frame, &res); err != nil {
			return d.finish(res, start), err
		}
	}

	if err := d.dispatchAll(ctx, set.Binary, frame, &res); err != nil {
		return d.finish(res, start), err
	}

	res = d.finish(res, start)
	d.stats.frameDispatched(res.Packets)
	if d.emitter != nil {
		d.emitter.OnFrameDispatched(res)
	}
	return res, nil
}

func (d *Dispatcher) finish(res DispatchResult, start time.Time) DispatchResult {
	res.Duration = time.Since(start)
	return res
}

func (d *Dispatcher) dispatchAll(ctx context.Context, devices []domain.Device, frame domain.Frame, res *DispatchResult) error {
	for _, dev := range devices {
		n, err := d.dispatchDevice(ctx, dev, frame)
		res.Packets += n
		if err == nil {
			res.Devices++
			continue
		}

		if d.emitter != nil {
			d.emitter.OnDispatchError(dev.ID, err)
		}

		if errors.Is(err, domain.ErrTransport) {
			d.stats.transportError(res.Packets)
			d.logger.Error("send failed, abandoning frame",
				ports.String("device", dev.ID),
				ports.Uint64("seq", frame.Seq),
				ports.Err(err),
			)
			return err
		}

		res.Failed++
		d.stats.deviceError()
		d.logger.Warn("device skipped for this frame",
			ports.String("device", dev.ID),
			ports.Uint64("seq", frame.Seq),
			ports.Int("frame_bytes", len(frame.Data)),
			ports.Err(err),
		)
	}
	return nil
}

// dispatchDevice remaps every window of dev before sending anything, so a
// mapping error never leaves a device half updated.
func (d *Dispatcher) dispatchDevice(ctx context.Context, dev domain.Device, frame domain.Frame) (int, error) {
	windows := dev.Windows()
	buffers := make([][]byte, len(windows))
	for i, w := range windows {
		pixels, err := mapping.RemapWindow(frame.Data, w.Table, w.Origin, w.Size)
		if err != nil {
			return 0, err
		}
		buffers[i] = pixels
	}

	switch dev.Protocol {
	case domain.ProtocolText:
		return d.publish(ctx, dev, windows, buffers)
	case domain.ProtocolBinary:
		return d.send(ctx, dev, buffers[0])
	default:
		return 0, fmt.Errorf("device %s: unsupported protocol %s", dev.ID, dev.Protocol)
	}
}

func (d *Dispatcher) publish(ctx context.Context, dev domain.Device, windows []domain.Window, buffers [][]byte) (int, error) {
	if d.publisher == nil {
		return 0, fmt.Errorf("device %s: %w: no publisher configured", dev.ID, domain.ErrTransport)
	}
	sent := 0
	for i, w := range windows {
		topic := protocol.Topic(dev.ID, w.Origin)
		payload := protocol.EncodeHexColors(buffers[i])
		d.logger.Debug("publishing", ports.String("topic", topic), ports.String("payload", payload))

		if err := d.publisher.Publish(ctx, topic, payload); err != nil {
			return sent, fmt.Errorf("device %s: publish %s: %w: %w", dev.ID, topic, domain.ErrTransport, err)
		}
		sent++
	}
	return sent, nil
}

func (d *Dispatcher) send(ctx context.Context, dev domain.Device, pixels []byte) (int, error) {
	if d.sender == nil {
		return 0, fmt.Errorf("device %s: %w: no datagram sender configured", dev.ID, domain.ErrTransport)
	}
	packets, err := protocol.EncodeWLED(pixels, d.config.Timeout)
	if err != nil {
		return 0, fmt.Errorf("device %s: %w", dev.ID, err)
	}

	sent := 0
	for _, pkt := range packets {
		d.logger.Debug("sending datagram",
			ports.String("device", dev.ID),
			ports.Int("bytes", len(pkt)),
		)
		if err := d.sender.SendTo(ctx, dev.ID, pkt); err != nil {
			return sent, fmt.Errorf("device %s: %w: %w", dev.ID, domain.ErrTransport, err)
		}
		sent++
	}
	return sent, nil
}
