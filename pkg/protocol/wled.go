package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// WLED realtime protocol codes.
const (
	CodeDRGB  byte = 2
	CodeDNRGB byte = 4
)

const (
	// DefaultTimeout is the number of seconds the controller stays in
	// realtime mode after the last packet.
	DefaultTimeout byte = 1

	// MaxPixelsPerPacket keeps a DNRGB packet (4 + 489*3 = 1471 bytes)
	// below a typical Ethernet MTU.
	MaxPixelsPerPacket = 489

	drgbHeaderLen  = 2
	dnrgbHeaderLen = 4
)

var (
	// ErrMalformedPacket is returned by the decoders for packets that do not
	// follow the expected layout.
	ErrMalformedPacket = errors.New("protocol: malformed packet")

	// ErrTooManyPixels is returned when a chunk offset does not fit 16 bits.
	ErrTooManyPixels = errors.New("protocol: pixel offset exceeds 65535")
)

// EncodeDRGB wraps a whole pixel buffer in a single DRGB packet.
func EncodeDRGB(pixels []byte, timeout byte) []byte {
	pkt := make([]byte, drgbHeaderLen+len(pixels))
	pkt[0] = CodeDRGB
	pkt[1] = timeout
	copy(pkt[drgbHeaderLen:], pixels)
	return pkt
}

// EncodeDNRGB splits pixels into chunks of at most MaxPixelsPerPacket pixels
// and returns one DNRGB packet per chunk, in ascending offset order.
func EncodeDNRGB(pixels []byte, timeout byte) ([][]byte, error) {
	total := len(pixels) / 3
	if total > 0 && (total-1)/MaxPixelsPerPacket*MaxPixelsPerPacket > 0xFFFF {
		return nil, fmt.Errorf("%w: %d pixels", ErrTooManyPixels, total)
	}

	packets := make([][]byte, 0, (total+MaxPixelsPerPacket-1)/MaxPixelsPerPacket)
	for offset := 0; offset < total; offset += MaxPixelsPerPacket {
		n := min(MaxPixelsPerPacket, total-offset)
		chunk := pixels[offset*3 : (offset+n)*3]

		pkt := make([]byte, dnrgbHeaderLen+len(chunk))
		pkt[0] = CodeDNRGB
		pkt[1] = timeout
		binary.BigEndian.PutUint16(pkt[2:4], uint16(offset))
		copy(pkt[dnrgbHeaderLen:], chunk)
		packets = append(packets, pkt)
	}
	return packets, nil
}

// EncodeWLED returns a single DRGB packet when the buffer fits one datagram
// and DNRGB chunks otherwise.
func EncodeWLED(pixels []byte, timeout byte) ([][]byte, error) {
	if len(pixels)/3 <= MaxPixelsPerPacket {
		return [][]byte{EncodeDRGB(pixels, timeout)}, nil
	}
	return EncodeDNRGB(pixels, timeout)
}

// DecodeDRGB parses a DRGB packet.
func DecodeDRGB(pkt []byte) (timeout byte, pixels []byte, err error) {
	if len(pkt) < drgbHeaderLen || pkt[0] != CodeDRGB {
		return 0, nil, fmt.Errorf("%w: not a DRGB packet", ErrMalformedPacket)
	}
	if (len(pkt)-drgbHeaderLen)%3 != 0 {
		return 0, nil, fmt.Errorf("%w: payload of %d bytes is not RGB aligned", ErrMalformedPacket, len(pkt)-drgbHeaderLen)
	}
	return pkt[1], pkt[drgbHeaderLen:], nil
}

// DecodeDNRGB parses a DNRGB packet and returns its starting pixel offset.
func DecodeDNRGB(pkt []byte) (timeout byte, offset int, pixels []byte, err error) {
	if len(pkt) < dnrgbHeaderLen || pkt[0] != CodeDNRGB {
		return 0, 0, nil, fmt.Errorf("%w: not a DNRGB packet", ErrMalformedPacket)
	}
	payload := pkt[dnrgbHeaderLen:]
	if len(payload)%3 != 0 {
		return 0, 0, nil, fmt.Errorf("%w: payload of %d bytes is not RGB aligned", ErrMalformedPacket, len(payload))
	}
	if len(payload)/3 > MaxPixelsPerPacket {
		return 0, 0, nil, fmt.Errorf("%w: %d pixels in one chunk", ErrMalformedPacket, len(payload)/3)
	}
	return pkt[1], int(binary.BigEndian.Uint16(pkt[2:4])), payload, nil
}
