// Package ledship provides an embeddable bridge from raw RGB frames to LED
// controllers.
//
// Frames arrive as UDP datagrams of packed RGB bytes. Every frame is remapped
// for each configured device and delivered either as hex color commands over
// MQTT (Tasmota) or as WLED realtime datagrams (DRGB/DNRGB). It can be used as
// the standalone ledship CLI or embedded as a library in other Go programs.
//
// # Basic Usage
//
//	wled, err := ledship.NewBinaryDevice("192.168.1.40:21324", 60,
//	    []ledship.Mapping{{SourceStart: 0, TargetStart: 0, Length: 60}})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	b, err := ledship.New(ledship.Config{
//	    Devices: ledship.DeviceSet{Binary: []ledship.Device{wled}},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := b.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Stop()
//
// # Configuration
//
// A [Config] needs at least one device. Text devices also need an MQTT broker
// URL unless a [Publisher] is injected with [WithPublisher]. All other fields
// have defaults set via [Config.SetDefaults].
//
// # Event Handling
//
// Implement [EventHandler] and pass it via [WithEventHandler]. Events are
// called synchronously from the dispatch goroutine and must return quickly.
//
// # Dependency Injection
//
// The transports can be replaced, which is how the tests drive a bridge
// without sockets or a broker:
//
//	b, err := ledship.New(cfg,
//	    ledship.WithFrameSource(source),
//	    ledship.WithPublisher(publisher),
//	    ledship.WithDatagramSender(sender),
//	)
//
// # Lifecycle States
//
// A bridge is in one of [StateStopped], [StateStarting], [StateRunning],
// [StateStopping] or [StateCrashed]. Use [Ledship.Status] to query it and
// [Ledship.Done] to wait for the frame pipeline to exit.
//
// # Plugins
//
// Plugins are initialized on Start in registration order and shut down on
// Stop in reverse order. They receive a [Reloader] to swap the device set of
// the running bridge:
//
//	import "github.com/bft-labs/ledship/plugins/configwatcher"
//
//	b, err := ledship.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{Path: path, Load: load}),
//	)
//
// # Version
//
// Use [ModuleVersions] to get the versions of the sub-packages.
package ledship
