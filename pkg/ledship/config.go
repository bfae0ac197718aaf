package ledship

import (
	"fmt"
	"time"

	"github.com/bft-labs/ledship/internal/domain"
	"github.com/bft-labs/ledship/pkg/mapping"
)

// Defaults applied by Config.SetDefaults.
const (
	DefaultUDPBindAddress    = "0.0.0.0:19446"
	DefaultReceiveBufferSize = 1024
	DefaultQueueSize         = 1000
	DefaultWLEDTimeout       = 1
	DefaultStatusInterval    = 10 * time.Second
)

// Re-exported device types so callers can build a DeviceSet without
// reaching into internal packages.
type (
	// Device is one downstream LED controller.
	Device = domain.Device

	// DeviceSet is the set of devices a bridge drives.
	DeviceSet = domain.DeviceSet

	// Mapping copies a run of source pixels to a run of target pixels.
	Mapping = mapping.Mapping

	// Stats is a snapshot of the bridge counters.
	Stats = domain.Stats

	// Frame is one datagram of raw pixel data, as returned by a FrameSource.
	Frame = domain.Frame
)

// NewTextDevice validates ms and returns a device driven over MQTT with
// hex color payloads published under prefix.
func NewTextDevice(prefix string, ms []Mapping, perMapping bool) (Device, error) {
	return domain.NewTextDevice(prefix, ms, perMapping)
}

// NewBinaryDevice validates ms and returns a WLED device at addr (host:port)
// with numLEDs pixels.
func NewBinaryDevice(addr string, numLEDs int, ms []Mapping) (Device, error) {
	return domain.NewBinaryDevice(addr, numLEDs, ms)
}

// MQTTConfig holds the broker settings used by text devices.
type MQTTConfig struct {
	URL      string
	ClientID string
	User     string
	Password string
	QoS      byte
}

// Config holds the bridge configuration.
type Config struct {
	// UDPBindAddress is where raw frames are received.
	UDPBindAddress string

	// SendBindAddress is the local address of the WLED sending socket.
	// Empty lets the kernel choose.
	SendBindAddress string

	// ReceiveBufferSize is the largest datagram accepted in full, in bytes.
	ReceiveBufferSize int

	// QueueSize bounds the frames waiting between receive and dispatch.
	QueueSize int

	// ChangeDetection skips text devices for frames identical to the
	// previous one.
	ChangeDetection bool

	// WLEDTimeout is the realtime timeout byte sent to WLED, in seconds.
	// Zero means DefaultWLEDTimeout; 255 keeps realtime mode until reboot.
	WLEDTimeout byte

	MQTT MQTTConfig

	Devices DeviceSet

	// LockFile, when set, prevents a second bridge from starting.
	LockFile string

	// StatusFile, when set, receives a JSON stats snapshot every
	// StatusInterval and on Stop.
	StatusFile     string
	StatusInterval time.Duration
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	if c.UDPBindAddress == "" {
		c.UDPBindAddress = DefaultUDPBindAddress
	}
	if c.ReceiveBufferSize <= 0 {
		c.ReceiveBufferSize = DefaultReceiveBufferSize
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = DefaultStatusInterval
	}
	if c.WLEDTimeout == 0 {
		c.WLEDTimeout = DefaultWLEDTimeout
	}
}

// Validate checks the configuration. Devices are validated when built.
func (c *Config) Validate() error {
	if c.Devices.Len() == 0 {
		return fmt.Errorf("%w: no devices configured", domain.ErrInvalidConfig)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("%w: mqtt qos %d", domain.ErrInvalidConfig, c.MQTT.QoS)
	}
	for _, d := range c.Devices.All() {
		if d.Table == nil {
			return fmt.Errorf("%w: device %q has no mapping table", domain.ErrInvalidConfig, d.ID)
		}
	}
	return nil
}
