package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Z-Way socket bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Socket   SocketConfig   `yaml:"socket"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SocketConfig contains settings for the outbound WebSocket connection.
type SocketConfig struct {
	// Address is the WebSocket server to dial (e.g., "ws://192.168.1.10:8084").
	// This is the one required option.
	Address string `yaml:"address"`

	// IDPrefix filters which registry devices are exported in full-state
	// messages. Only devices whose ID contains this prefix are included.
	IDPrefix string `yaml:"id_prefix"`

	// SendFullState controls whether an allDevices message is emitted
	// immediately after a connection opens, so the peer can resynchronise.
	SendFullState bool `yaml:"send_full_state"`

	// GuardReleaseMS is how long the connect guard stays held after a
	// successful dial, in milliseconds. This debounces reconnect triggers
	// that arrive in quick succession. The exact value is a tunable, not
	// a correctness requirement.
	GuardReleaseMS int `yaml:"guard_release_ms"`

	// HandshakeTimeout is the maximum time for the WebSocket handshake (seconds).
	HandshakeTimeout int `yaml:"handshake_timeout"`
}

// DatabaseConfig contains SQLite database settings for the device registry.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings for the metric ingest.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings for metric history.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ZWAYBRIDGE_SECTION_KEY
// For example: ZWAYBRIDGE_SOCKET_ADDRESS, ZWAYBRIDGE_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Socket: SocketConfig{
			IDPrefix:         "ZWayVDev",
			SendFullState:    true,
			GuardReleaseMS:   100,
			HandshakeTimeout: 10,
		},
		Database: DatabaseConfig{
			Path:        "./data/zwaybridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "zway-socket-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: ZWAYBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Socket
	if v := os.Getenv("ZWAYBRIDGE_SOCKET_ADDRESS"); v != "" {
		cfg.Socket.Address = v
	}

	// Database
	if v := os.Getenv("ZWAYBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("ZWAYBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ZWAYBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ZWAYBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("ZWAYBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Socket validation - the address is the one required option
	if c.Socket.Address == "" {
		errs = append(errs, "socket.address is required (set ZWAYBRIDGE_SOCKET_ADDRESS environment variable)")
	} else if !strings.HasPrefix(c.Socket.Address, "ws://") && !strings.HasPrefix(c.Socket.Address, "wss://") {
		errs = append(errs, "socket.address must be a ws:// or wss:// URL")
	}
	if c.Socket.GuardReleaseMS < 0 {
		errs = append(errs, "socket.guard_release_ms must not be negative")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetGuardRelease returns the connect-guard release delay as a Duration.
func (c *SocketConfig) GetGuardRelease() time.Duration {
	return time.Duration(c.GuardReleaseMS) * time.Millisecond
}

// GetHandshakeTimeout returns the WebSocket handshake timeout as a Duration.
func (c *SocketConfig) GetHandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeout) * time.Second
}
