package cliconfig

import (
	"fmt"

	"github.com/bft-labs/ledship/internal/domain"
	"github.com/bft-labs/ledship/pkg/mapping"
)

// MappingConfig is one entry of a device's mappings array.
type MappingConfig struct {
	SourceStart int  `toml:"source_start"`
	TargetStart int  `toml:"target_start"`
	Length      int  `toml:"length"`
	Reverse     bool `toml:"reverse"`
}

// TasmotaConfig is one [[tasmotas]] table.
type TasmotaConfig struct {
	MQTTPrefix string          `toml:"mqtt_prefix"`
	PerMapping bool            `toml:"per_mapping"`
	Mappings   []MappingConfig `toml:"mappings"`
}

// WLEDConfig is one [[wleds]] table.
type WLEDConfig struct {
	URL          string          `toml:"url"`
	NumberOfLEDs int             `toml:"number_of_leds"`
	Mappings     []MappingConfig `toml:"mappings"`
}

func toMappings(in []MappingConfig) []mapping.Mapping {
	out := make([]mapping.Mapping, len(in))
	for i, m := range in {
		out[i] = mapping.Mapping{
			SourceStart: m.SourceStart,
			TargetStart: m.TargetStart,
			Length:      m.Length,
			Reverse:     m.Reverse,
		}
	}
	return out
}

// BuildDevices validates every configured device and returns the device set.
// The first invalid device aborts the build.
func BuildDevices(cfg Config) (domain.DeviceSet, error) {
	var set domain.DeviceSet

	for i, t := range cfg.Tasmotas {
		d, err := domain.NewTextDevice(t.MQTTPrefix, toMappings(t.Mappings), t.PerMapping)
		if err != nil {
			return domain.DeviceSet{}, fmt.Errorf("tasmotas[%d]: %w", i, err)
		}
		set.Text = append(set.Text, d)
	}

	for i, w := range cfg.WLEDs {
		d, err := domain.NewBinaryDevice(w.URL, w.NumberOfLEDs, toMappings(w.Mappings))
		if err != nil {
			return domain.DeviceSet{}, fmt.Errorf("wleds[%d]: %w", i, err)
		}
		set.Binary = append(set.Binary, d)
	}

	return set, nil
}

// Load reads path (if it exists), applies the environment, validates the
// result and builds the devices. Flags in changed keep the values already
// in base.
func Load(base Config, path string, changed map[string]bool) (Config, domain.DeviceSet, error) {
	cfg := base
	if path != "" && FileExists(path) {
		fc, err := LoadFileConfig(path)
		if err != nil {
			return cfg, domain.DeviceSet{}, fmt.Errorf("load config %s: %w", path, err)
		}
		if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
			return cfg, domain.DeviceSet{}, err
		}
	}

	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		return cfg, domain.DeviceSet{}, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, domain.DeviceSet{}, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}

	devices, err := BuildDevices(cfg)
	if err != nil {
		return cfg, domain.DeviceSet{}, err
	}
	return cfg, devices, nil
}
