package ports

import "context"

// Publisher delivers text payloads for text-protocol devices.
// Connection management and reconnects are the implementation's concern.
type Publisher interface {
	Publish(ctx context.Context, topic, payload string) error
}

// DatagramSender delivers binary packets for binary-protocol devices.
type DatagramSender interface {
	// SendTo writes packet as one datagram to addr (host:port).
	SendTo(ctx context.Context, addr string, packet []byte) error
}
