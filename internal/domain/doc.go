// Package domain contains the core entities of ledship.
//
// This package has no dependencies on infrastructure concerns (sockets,
// MQTT, logging). It holds the values that flow through the pipeline and the
// errors the public API returns.
//
// # Entities
//
//   - [Frame]: one received datagram of raw RGB pixels
//   - [Device]: one downstream LED controller with its validated mapping table
//   - [DeviceSet]: the immutable device configuration used for dispatch
//   - [Stats]: counters describing what the bridge has done so far
//
// # Design Principles
//
// Devices and device sets are immutable after construction and are shared
// between goroutines without locking. Frames are owned by exactly one
// goroutine at a time.
package domain
