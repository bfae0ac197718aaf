package domain

import "time"

// Frame is one datagram of raw pixel data.
// Data holds consecutive R, G, B bytes per pixel.
type Frame struct {
	// Seq is the receive sequence number, starting at 1.
	Seq uint64

	// Data is the received payload. The slice is owned by whoever holds the frame.
	Data []byte

	// ReceivedAt is when the datagram was read from the socket.
	ReceivedAt time.Time

	// Truncated is set when the datagram filled the whole receive buffer,
	// meaning trailing bytes may have been dropped.
	Truncated bool
}

// Pixels returns the number of complete RGB triplets in the frame.
func (f Frame) Pixels() int {
	return len(f.Data) / 3
}
