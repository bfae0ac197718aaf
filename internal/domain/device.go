package domain

import (
	"fmt"

	"github.com/bft-labs/ledship/pkg/mapping"
)

// Protocol identifies the wire protocol a device speaks.
type Protocol int

const (
	// ProtocolText publishes "#rrggbb " payloads to a topic per strip.
	ProtocolText Protocol = iota
	// ProtocolBinary sends WLED DRGB/DNRGB datagrams.
	ProtocolBinary
)

// String returns a human-readable representation of the protocol.
func (p Protocol) String() string {
	switch p {
	case ProtocolText:
		return "text"
	case ProtocolBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Device is one downstream LED controller.
type Device struct {
	// ID is the topic prefix for text devices and host:port for binary devices.
	ID       string
	Protocol Protocol
	Table    *mapping.Table

	// NumLEDs is the full strip length of a binary device.
	NumLEDs int

	// PerMapping publishes one payload per mapping instead of one per device.
	// Text devices only.
	PerMapping bool
}

// NewTextDevice validates ms and returns a text-protocol device.
func NewTextDevice(prefix string, ms []mapping.Mapping, perMapping bool) (Device, error) {
	if prefix == "" {
		return Device{}, fmt.Errorf("%w: text device without mqtt_prefix", ErrInvalidConfig)
	}
	table, err := mapping.NewTable(ms)
	if err != nil {
		return Device{}, fmt.Errorf("device %s: %w", prefix, err)
	}
	return Device{
		ID:         prefix,
		Protocol:   ProtocolText,
		Table:      table,
		PerMapping: perMapping,
	}, nil
}

// NewBinaryDevice validates ms against numLEDs and returns a binary-protocol device.
func NewBinaryDevice(addr string, numLEDs int, ms []mapping.Mapping) (Device, error) {
	if addr == "" {
		return Device{}, fmt.Errorf("%w: binary device without url", ErrInvalidConfig)
	}
	if numLEDs <= 0 {
		return Device{}, fmt.Errorf("%w: device %s: number_of_leds must be positive", ErrInvalidConfig, addr)
	}
	if numLEDs > mapping.MaxPixels {
		return Device{}, fmt.Errorf("%w: device %s: number_of_leds %d exceeds %d",
			ErrInvalidConfig, addr, numLEDs, mapping.MaxPixels)
	}
	table, err := mapping.NewTable(ms)
	if err != nil {
		return Device{}, fmt.Errorf("device %s: %w", addr, err)
	}
	if end := table.End(); end > numLEDs {
		return Device{}, fmt.Errorf("device %s: %w: mapped up to %d, number_of_leds is %d",
			addr, ErrTargetOutOfRange, end, numLEDs)
	}
	return Device{
		ID:       addr,
		Protocol: ProtocolBinary,
		Table:    table,
		NumLEDs:  numLEDs,
	}, nil
}

// Window is one remapped region of a device and where it is addressed.
type Window struct {
	Table  *mapping.Table
	Origin int
	Size   int
}

// Windows returns the target regions to remap for one dispatch of d.
// Binary devices have a single window covering the whole strip. Text
// devices have one window spanning their mappings, or one per mapping.
func (d Device) Windows() []Window {
	if d.Protocol == ProtocolBinary {
		return []Window{{Table: d.Table, Origin: 0, Size: d.NumLEDs}}
	}
	if !d.PerMapping {
		origin, size := d.Table.Span()
		return []Window{{Table: d.Table, Origin: origin, Size: size}}
	}
	windows := make([]Window, d.Table.Len())
	for i := range windows {
		t := d.Table.Window(i)
		origin, size := t.Span()
		windows[i] = Window{Table: t, Origin: origin, Size: size}
	}
	return windows
}

// DeviceSet is the immutable set of devices a dispatcher serves.
type DeviceSet struct {
	Text   []Device
	Binary []Device
}

// Len returns the total number of devices.
func (s DeviceSet) Len() int {
	return len(s.Text) + len(s.Binary)
}

// All returns text devices followed by binary devices.
func (s DeviceSet) All() []Device {
	out := make([]Device, 0, s.Len())
	out = append(out, s.Text...)
	return append(out, s.Binary...)
}
