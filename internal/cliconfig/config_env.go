package cliconfig

import "os"

// EnvPrefix is the prefix of every environment variable read by ApplyEnvConfig.
const EnvPrefix = "LEDSHIP_"

// ApplyEnvConfig applies configuration from environment variables (LEDSHIP_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("udp-bind", env("UDP_BIND_ADDRESS"), &cfg.UDPBindAddress)
	s.setString("send-bind", env("SEND_BIND_ADDRESS"), &cfg.SendBindAddress)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)
	s.setString("lock-file", env("LOCK_FILE"), &cfg.LockFile)
	s.setString("status-file", env("STATUS_FILE"), &cfg.StatusFile)
	s.setString("mqtt-url", env("MQTT_URL"), &cfg.MQTT.URL)
	s.setString("mqtt-client-id", env("MQTT_CLIENT_ID"), &cfg.MQTT.ClientID)
	s.setString("mqtt-user", env("MQTT_USER"), &cfg.MQTT.User)
	s.setString("mqtt-password", env("MQTT_PASSWORD"), &cfg.MQTT.Password)

	if err := s.setIntFromString("buffer-size", env("RECEIVE_BUFFER_SIZE"), &cfg.ReceiveBufferSize); err != nil {
		return err
	}
	if err := s.setIntFromString("queue-size", env("QUEUE_SIZE"), &cfg.QueueSize); err != nil {
		return err
	}
	if err := s.setIntFromString("wled-timeout", env("WLED_TIMEOUT"), &cfg.WLEDTimeout); err != nil {
		return err
	}
	if err := s.setIntFromString("mqtt-qos", env("MQTT_QOS"), &cfg.MQTT.QoS); err != nil {
		return err
	}

	if err := s.setDuration("status-interval", env("STATUS_INTERVAL"), &cfg.StatusInterval); err != nil {
		return err
	}

	s.setBoolFromString("change-detection", env("CHANGE_DETECTION"), &cfg.ChangeDetection)

	return nil
}
