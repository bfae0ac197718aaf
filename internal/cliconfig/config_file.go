package cliconfig

import (
	"bytes"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations and pointers for
// values where zero is meaningful, to make TOML friendly.
type FileConfig struct {
	UDPBindAddress    string `toml:"udp_bind_address"`
	SendBindAddress   string `toml:"send_bind_address"`
	ReceiveBufferSize int    `toml:"receive_buffer_size"`
	QueueSize         int    `toml:"queue_size"`
	ChangeDetection   *bool  `toml:"change_detection"`
	WLEDTimeout       *int   `toml:"wled_timeout"`
	LogLevel          string `toml:"log_level"`
	LockFile          string `toml:"lock_file"`
	StatusFile        string `toml:"status_file"`
	StatusInterval    string `toml:"status_interval"`

	MQTT FileMQTTConfig `toml:"mqtt"`

	Tasmotas []TasmotaConfig `toml:"tasmotas"`
	WLEDs    []WLEDConfig    `toml:"wleds"`
}

// FileMQTTConfig is the [mqtt] table.
type FileMQTTConfig struct {
	URL      string `toml:"url"`
	ClientID string `toml:"client_id"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	QoS      *int   `toml:"qos"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
// Unknown keys are rejected so typos in device tables do not go unnoticed.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.ledship/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".ledship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
// Devices only come from the file and always replace cfg's devices.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("udp-bind", fc.UDPBindAddress, &cfg.UDPBindAddress)
	s.setString("send-bind", fc.SendBindAddress, &cfg.SendBindAddress)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("lock-file", fc.LockFile, &cfg.LockFile)
	s.setString("status-file", fc.StatusFile, &cfg.StatusFile)

	s.setInt("buffer-size", fc.ReceiveBufferSize, &cfg.ReceiveBufferSize)
	s.setInt("queue-size", fc.QueueSize, &cfg.QueueSize)
	s.setIntPtr("wled-timeout", fc.WLEDTimeout, &cfg.WLEDTimeout)
	s.setBool("change-detection", fc.ChangeDetection, &cfg.ChangeDetection)

	if err := s.setDuration("status-interval", fc.StatusInterval, &cfg.StatusInterval); err != nil {
		return err
	}

	s.setString("mqtt-url", fc.MQTT.URL, &cfg.MQTT.URL)
	s.setString("mqtt-client-id", fc.MQTT.ClientID, &cfg.MQTT.ClientID)
	s.setString("mqtt-user", fc.MQTT.User, &cfg.MQTT.User)
	s.setString("mqtt-password", fc.MQTT.Password, &cfg.MQTT.Password)
	s.setIntPtr("mqtt-qos", fc.MQTT.QoS, &cfg.MQTT.QoS)

	cfg.Tasmotas = fc.Tasmotas
	cfg.WLEDs = fc.WLEDs

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
