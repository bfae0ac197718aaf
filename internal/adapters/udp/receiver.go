package udp

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/bft-labs/ledship/internal/domain"
)

// DefaultReceiveBufferSize is the receive buffer size in bytes.
const DefaultReceiveBufferSize = 1024

// Receiver implements ports.FrameSource over a UDP socket.
// Every datagram is one frame.
type Receiver struct {
	conn net.PacketConn
	buf  []byte
	seq  uint64
}

// Listen binds a receiver to addr. bufferSize is the largest datagram
// accepted in full; a datagram filling the buffer is flagged as truncated.
func Listen(ctx context.Context, addr string, bufferSize int) (*Receiver, error) {
	if bufferSize < 1 {
		bufferSize = DefaultReceiveBufferSize
	}

	lc := net.ListenConfig{Control: reuseAddr}
	conn, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &Receiver{conn: conn, buf: make([]byte, bufferSize)}, nil
}

// Next blocks until a datagram arrives. The returned Data is a fresh copy.
// After Close it returns an error wrapping net.ErrClosed.
func (r *Receiver) Next(ctx context.Context) (domain.Frame, error) {
	n, _, err := r.conn.ReadFrom(r.buf)
	if err != nil {
		return domain.Frame{}, err
	}
	r.seq++

	data := make([]byte, n)
	copy(data, r.buf[:n])
	return domain.Frame{
		Seq:        r.seq,
		Data:       data,
		ReceivedAt: time.Now(),
		Truncated:  n >= len(r.buf),
	}, nil
}

// Close closes the socket and unblocks a pending Next.
func (r *Receiver) Close() error {
	return r.conn.Close()
}

// Addr returns the bound local address.
func (r *Receiver) Addr() net.Addr {
	return r.conn.LocalAddr()
}
