package configwatcher

import "github.com/bft-labs/ledship/pkg/ledship"

// WithConfigWatcher returns a ledship Option that reloads the device set
// whenever the configuration file changes.
//
// Usage:
//
//	b, err := ledship.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Path: "/etc/ledship/config.toml",
//	        Load: loadDevices,
//	    }),
//	)
func WithConfigWatcher(cfg Config) ledship.Option {
	return ledship.WithPlugin(New(cfg))
}
