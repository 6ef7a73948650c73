package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all daemon configuration.
type Config struct {
	// Transports. A configured serial port wins; otherwise the daemon
	// listens on TCP.
	Serial SerialConfig `yaml:"serial" json:"serial"`
	TCP    TCPConfig    `yaml:"tcp" json:"tcp"`

	// Engine cadences
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// Web monitor
	Monitor MonitorConfig `yaml:"monitor" json:"monitor"`

	// CSV capture
	Recorder RecorderConfig `yaml:"recorder" json:"recorder"`

	path string // file path for save/load
}

type SerialConfig struct {
	Port string `yaml:"port" json:"port"` // e.g. /dev/ttyACM0; empty disables serial
	Baud int    `yaml:"baud" json:"baud"`
}

type TCPConfig struct {
	Listen string `yaml:"listen" json:"listen"` // e.g. :9000
}

type EngineConfig struct {
	Version      string `yaml:"version" json:"version"`              // reported in the BOOT record
	TickMS       int    `yaml:"tick_ms" json:"tickMs"`               // engine and sim pass period
	HeartbeatMS  int    `yaml:"heartbeat_ms" json:"heartbeatMs"`     // HEARTBEAT period
	SlotReportMS int    `yaml:"slot_report_ms" json:"slotReportMs"`  // SLOTS period, 0 disables
}

type MonitorConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Listen  string `yaml:"listen" json:"listen"` // e.g. :8080
}

type RecorderConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Dir     string `yaml:"dir" json:"dir"`
	MaxRows int    `yaml:"max_rows" json:"maxRows"` // rows per file before rotation
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			Port: "",
			Baud: 115200,
		},
		TCP: TCPConfig{
			Listen: ":9000",
		},
		Engine: EngineConfig{
			Version:      "1.0.0",
			TickMS:       10,
			HeartbeatMS:  1000,
			SlotReportMS: 1000,
		},
		Monitor: MonitorConfig{
			Enabled: true,
			Listen:  ":8080",
		},
		Recorder: RecorderConfig{
			Enabled: false,
			Dir:     "/var/log/memstreamd",
			MaxRows: 100000,
		},
	}
}

// TransportKind names the transport the config selects, "serial" when a
// port is set and "tcp" otherwise. The engine reports it in BOOT.
func (c *Config) TransportKind() string {
	if c.Serial.Port != "" {
		return "serial"
	}
	return "tcp"
}

// LoadConfig reads config from a YAML file, then applies .env and environment
// variable overrides. Falls back to defaults if YAML not found.
func LoadConfig(path string) *Config {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[config] no config at %s, using defaults", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("[config] error parsing %s: %v, using defaults", path, err)
		cfg = DefaultConfig()
		cfg.path = path
	} else {
		log.Printf("[config] loaded from %s", path)
	}

	// Load .env file from the same directory as the config, or from CWD
	envPaths := []string{
		filepath.Join(filepath.Dir(path), ".env"),
		".env",
	}
	for _, ep := range envPaths {
		loadEnvFile(ep)
	}

	cfg.applyEnvOverrides()
	return cfg
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	log.Printf("[config] loading .env from %s", path)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		val = strings.Trim(val, `"'`)
		// Real env takes precedence over .env entries.
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: SERIAL_PORT, SERIAL_BAUD, LISTEN_ADDR, MONITOR_ADDR,
// MONITOR_ENABLED, RECORD_ENABLED, RECORD_DIR, HEARTBEAT_MS, SLOT_REPORT_MS
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SERIAL_PORT"); v != "" {
		c.Serial.Port = v
	}
	if v := os.Getenv("SERIAL_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Serial.Baud = n
		}
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.TCP.Listen = v
	}
	if v := os.Getenv("MONITOR_ADDR"); v != "" {
		c.Monitor.Listen = v
	}
	if v := os.Getenv("MONITOR_ENABLED"); v != "" {
		c.Monitor.Enabled = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("RECORD_ENABLED"); v != "" {
		c.Recorder.Enabled = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("RECORD_DIR"); v != "" {
		c.Recorder.Dir = v
	}
	if v := os.Getenv("HEARTBEAT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Engine.HeartbeatMS = n
		}
	}
	if v := os.Getenv("SLOT_REPORT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Engine.SlotReportMS = n
		}
	}
}

// Save writes the config to its YAML file.
func (c *Config) Save() error {
	if c.path == "" {
		c.path = "/etc/memstreamd/config.yaml"
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}
