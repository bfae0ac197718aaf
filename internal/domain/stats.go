package domain

import "time"

// Stats is a snapshot of the bridge counters.
type Stats struct {
	FramesReceived   uint64 `json:"frames_received"`
	FramesDispatched uint64 `json:"frames_dispatched"`
	// FramesUnchanged counts frames for which the text devices were skipped.
	FramesUnchanged  uint64 `json:"frames_unchanged"`
	CapacityWarnings uint64 `json:"capacity_warnings"`
	DeviceErrors     uint64 `json:"device_errors"`
	TransportErrors  uint64 `json:"transport_errors"`
	PacketsSent      uint64 `json:"packets_sent"`

	Devices int `json:"devices"`

	StartedAt   time.Time `json:"started_at"`
	LastFrameAt time.Time `json:"last_frame_at,omitempty"`
	SavedAt     time.Time `json:"saved_at,omitempty"`
}
