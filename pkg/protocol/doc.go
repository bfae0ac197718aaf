// Package protocol frames pixel buffers for the downstream LED controllers.
//
// Two wire formats are supported:
//
//   - Hex colors: one `#rrggbb ` token per pixel, published as a single
//     string payload (Tasmota `LED<n>` commands).
//   - WLED realtime UDP: DRGB (code 2) for buffers that fit one datagram and
//     DNRGB (code 4) chunks of at most [MaxPixelsPerPacket] pixels otherwise.
//
// Encoders are stateless and safe for concurrent use. Decoders exist so that
// packets can be verified and inspected; they are not used on the hot path.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package protocol
