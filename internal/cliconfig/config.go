package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Defaults for the bridge configuration.
const (
	DefaultUDPBindAddress    = "0.0.0.0:19446"
	DefaultSendBindAddress   = "0.0.0.0:0"
	DefaultReceiveBufferSize = 1024
	DefaultQueueSize         = 1000
	DefaultWLEDTimeout       = 1
	DefaultMQTTQoS           = 1
	DefaultStatusInterval    = 10 * time.Second
)

// Config holds CLI configuration for ledship.
type Config struct {
	UDPBindAddress    string
	SendBindAddress   string
	ReceiveBufferSize int
	QueueSize         int
	ChangeDetection   bool
	WLEDTimeout       int

	LogLevel string

	LockFile       string
	StatusFile     string
	StatusInterval time.Duration

	MQTT MQTTConfig

	Tasmotas []TasmotaConfig
	WLEDs    []WLEDConfig
}

// MQTTConfig holds the broker settings used by text devices.
type MQTTConfig struct {
	URL      string
	ClientID string
	User     string
	Password string
	QoS      int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		UDPBindAddress:    DefaultUDPBindAddress,
		SendBindAddress:   DefaultSendBindAddress,
		ReceiveBufferSize: DefaultReceiveBufferSize,
		QueueSize:         DefaultQueueSize,
		ChangeDetection:   true,
		WLEDTimeout:       DefaultWLEDTimeout,
		LogLevel:          "info",
		StatusInterval:    DefaultStatusInterval,
		MQTT:              MQTTConfig{QoS: DefaultMQTTQoS},
	}
}

// Validate checks the configuration for errors. Device mappings are checked
// by BuildDevices.
func (c *Config) Validate() error {
	if c.UDPBindAddress == "" {
		return fmt.Errorf("udp bind address is required")
	}
	if c.ReceiveBufferSize <= 0 {
		return fmt.Errorf("receive buffer size must be positive")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive")
	}
	if c.WLEDTimeout < 1 || c.WLEDTimeout > 255 {
		return fmt.Errorf("wled timeout must be between 1 and 255, got %d", c.WLEDTimeout)
	}
	if c.StatusInterval < 0 {
		return fmt.Errorf("status interval must not be negative")
	}
	if len(c.Tasmotas)+len(c.WLEDs) == 0 {
		return fmt.Errorf("no devices configured")
	}
	if len(c.Tasmotas) > 0 {
		if c.MQTT.URL == "" {
			return fmt.Errorf("mqtt url is required when tasmotas are configured")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
		}
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setIntPtr sets an int value from a pointer, so an explicit zero is kept.
func (s *configSetter) setIntPtr(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return fmt.Errorf("parse %s: must not be negative", flag)
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1", "yes" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		*dst = true
	default:
		*dst = false
	}
}

// Redacted returns a copy of c that is safe to log.
func (c Config) Redacted() Config {
	if c.MQTT.Password != "" {
		c.MQTT.Password = "*****"
	}
	return c
}
