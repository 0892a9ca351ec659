package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfig writes a config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/tape.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "broker.example.com"
    port: 8883
    client_id: "tape-1"
    tls: true
  qos: 1
recording:
  topics:
    - "sensors/#"
    - "actuators/+/state"
playback:
  speed: 2
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/tape.db" {
		t.Errorf("Database.Path = %q, want /tmp/tape.db", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Host != "broker.example.com" {
		t.Errorf("Broker.Host = %q, want broker.example.com", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if !cfg.MQTT.Broker.TLS {
		t.Error("Broker.TLS = false, want true")
	}
	if cfg.MQTT.QoS != 1 {
		t.Errorf("QoS = %d, want 1", cfg.MQTT.QoS)
	}
	if len(cfg.Recording.Topics) != 2 {
		t.Fatalf("got %d recording topics, want 2", len(cfg.Recording.Topics))
	}
	if cfg.Recording.Topics[0] != "sensors/#" {
		t.Errorf("Topics[0] = %q, want sensors/#", cfg.Recording.Topics[0])
	}
	if cfg.Playback.Speed != 2 {
		t.Errorf("Playback.Speed = %v, want 2", cfg.Playback.Speed)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_Defaults(t *testing.T) {
	// A nearly empty file should fall back to defaults.
	path := writeConfig(t, `
database:
  path: "/tmp/tape.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("default Broker.Host = %q, want localhost", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("default Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.QoS != 0 {
		t.Errorf("default QoS = %d, want 0", cfg.MQTT.QoS)
	}
	if len(cfg.Recording.Topics) != 1 || cfg.Recording.Topics[0] != "#" {
		t.Errorf("default Topics = %v, want [#]", cfg.Recording.Topics)
	}
	if cfg.Playback.Speed != 1 {
		t.Errorf("default Playback.Speed = %v, want 1", cfg.Playback.Speed)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Load() should fail for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "database: [not: valid: yaml")

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() should fail for invalid YAML")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/tape.db"
mqtt:
  broker:
    host: "from-file"
  auth:
    username: "file-user"
`)

	t.Setenv("MQTTTAPE_MQTT_HOST", "from-env")
	t.Setenv("MQTTTAPE_MQTT_PORT", "8883")
	t.Setenv("MQTTTAPE_MQTT_PASSWORD", "secret")
	t.Setenv("MQTTTAPE_DATABASE_PATH", "/env/tape.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "from-env" {
		t.Errorf("Broker.Host = %q, want from-env (env override)", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("Broker.Port = %d, want 8883 (env override)", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Username != "file-user" {
		t.Errorf("Auth.Username = %q, want file-user (no override set)", cfg.MQTT.Auth.Username)
	}
	if cfg.MQTT.Auth.Password != "secret" {
		t.Errorf("Auth.Password = %q, want secret (env override)", cfg.MQTT.Auth.Password)
	}
	if cfg.Database.Path != "/env/tape.db" {
		t.Errorf("Database.Path = %q, want /env/tape.db (env override)", cfg.Database.Path)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"empty database path", func(c *Config) { c.Database.Path = "" }, true},
		{"empty broker host", func(c *Config) { c.MQTT.Broker.Host = "" }, true},
		{"port zero", func(c *Config) { c.MQTT.Broker.Port = 0 }, true},
		{"port too high", func(c *Config) { c.MQTT.Broker.Port = 70000 }, true},
		{"qos out of range", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"no recording topics", func(c *Config) { c.Recording.Topics = nil }, true},
		{"empty topic filter", func(c *Config) { c.Recording.Topics = []string{"a/#", ""} }, true},
		{"zero playback speed", func(c *Config) { c.Playback.Speed = 0 }, true},
		{"negative playback speed", func(c *Config) { c.Playback.Speed = -1 }, true},
		{"fractional speed is valid", func(c *Config) { c.Playback.Speed = 0.25 }, false},
		{"influx enabled without url", func(c *Config) { c.InfluxDB.Enabled = true }, true},
		{"influx enabled with url", func(c *Config) {
			c.InfluxDB.Enabled = true
			c.InfluxDB.URL = "http://localhost:8086"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestReconnectDelays(t *testing.T) {
	cfg := defaultConfig()
	cfg.MQTT.Reconnect.InitialDelay = 2
	cfg.MQTT.Reconnect.MaxDelay = 30

	if got := cfg.GetReconnectInitialDelay(); got != 2*time.Second {
		t.Errorf("GetReconnectInitialDelay() = %v, want 2s", got)
	}
	if got := cfg.GetReconnectMaxDelay(); got != 30*time.Second {
		t.Errorf("GetReconnectMaxDelay() = %v, want 30s", got)
	}
}
