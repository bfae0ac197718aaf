package udp

import (
	"context"
	"fmt"
	"net"
	"sync"
)

// DefaultSendBindAddress lets the kernel pick the outgoing port.
const DefaultSendBindAddress = "0.0.0.0:0"

// Sender implements ports.DatagramSender over one shared UDP socket.
// Resolved device addresses are cached.
type Sender struct {
	conn net.PacketConn

	mu    sync.Mutex
	addrs map[string]*net.UDPAddr
}

// NewSender binds the outgoing socket to bind.
func NewSender(ctx context.Context, bind string) (*Sender, error) {
	if bind == "" {
		bind = DefaultSendBindAddress
	}
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", bind)
	if err != nil {
		return nil, fmt.Errorf("bind sender to %s: %w", bind, err)
	}
	return &Sender{conn: conn, addrs: make(map[string]*net.UDPAddr)}, nil
}

// SendTo writes packet as a single datagram to addr.
// A deadline on ctx becomes the write deadline.
func (s *Sender) SendTo(ctx context.Context, addr string, packet []byte) error {
	ua, err := s.resolve(addr)
	if err != nil {
		return err
	}

	deadline, _ := ctx.Deadline()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	n, err := s.conn.WriteTo(packet, ua)
	if err != nil {
		return fmt.Errorf("send to %s: %w", addr, err)
	}
	if n != len(packet) {
		return fmt.Errorf("send to %s: short write %d of %d bytes", addr, n, len(packet))
	}
	return nil
}

func (s *Sender) resolve(addr string) (*net.UDPAddr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ua, ok := s.addrs[addr]; ok {
		return ua, nil
	}
	ua, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	s.addrs[addr] = ua
	return ua, nil
}

// Close closes the outgoing socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}

// LocalAddr returns the bound local address.
func (s *Sender) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

