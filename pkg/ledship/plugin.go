package ledship

import "context"

// Reloader swaps the device set of a running bridge.
type Reloader interface {
	Reload(devices DeviceSet) error
}

// PluginConfig is handed to plugins on Initialize.
type PluginConfig struct {
	Logger   Logger
	Reloader Reloader
}

// Plugin extends a bridge. Plugins are initialized in registration order
// when the bridge starts and shut down in reverse order when it stops.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// BasePlugin implements Plugin with no-ops. Embed it and override what you need.
type BasePlugin struct{}

func (BasePlugin) Name() string                                   { return "base" }
func (BasePlugin) Initialize(context.Context, PluginConfig) error { return nil }
func (BasePlugin) Shutdown(context.Context) error                 { return nil }
