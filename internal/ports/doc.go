// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// Ports are the boundaries between the dispatch core and the outside world.
// They describe what the core needs from its collaborators without saying
// how those needs are met.
//
// # Port Interfaces
//
//   - [FrameSource]: delivers one raw pixel frame per call (UDP receiver)
//   - [Publisher]: publishes text payloads to a topic (MQTT client)
//   - [DatagramSender]: sends one datagram to an address (UDP socket)
//   - [StatsRepository]: persists and loads the status snapshot
//   - [Logger]: structured logging abstraction
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with sockets,
// the MQTT client and the file system.
package ports
