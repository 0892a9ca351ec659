package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/mqtt-tape/internal/playback"
	"github.com/nerrad567/mqtt-tape/internal/tape"
)

// writeTestConfig writes a minimal valid config pointing at a temp database.
func writeTestConfig(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	configContent := `
database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "mqtttape-test"
    tls: false
  qos: 0
  reconnect:
    initial_delay: 1
    max_delay: 5

recording:
  topics:
    - "#"

playback:
  speed: 1

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

// TestRun_NoArguments verifies the usage error with no subcommand.
func TestRun_NoArguments(t *testing.T) {
	err := run(context.Background(), nil)
	if err == nil {
		t.Fatal("run() should fail without a subcommand")
	}
}

// TestRun_UnknownCommand verifies the usage error for unknown subcommands.
func TestRun_UnknownCommand(t *testing.T) {
	err := run(context.Background(), []string{"rewind"})
	if err == nil {
		t.Fatal("run() should fail for unknown command")
	}
}

// TestRecordCommand_InvalidConfig verifies record fails with a bad config path.
func TestRecordCommand_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := recordCommand(ctx, []string{"--config", "/nonexistent/path/config.yaml"})
	if err == nil {
		t.Fatal("recordCommand() should fail with invalid config path")
	}
}

// TestPlayCommand_NoRuns verifies play on a fresh database reports the
// empty tape instead of connecting anywhere.
func TestPlayCommand_NoRuns(t *testing.T) {
	configPath := writeTestConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := playCommand(ctx, []string{"--config", configPath})
	if !errors.Is(err, tape.ErrNoRuns) {
		t.Errorf("playCommand() error = %v, want tape.ErrNoRuns", err)
	}
}

// TestPlayCommand_InvalidSpeed verifies a bad speed flag is rejected before
// any broker contact.
func TestPlayCommand_InvalidSpeed(t *testing.T) {
	configPath := writeTestConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := playCommand(ctx, []string{"--config", configPath, "--speed", "-2"})
	if !errors.Is(err, playback.ErrInvalidSpeed) {
		t.Errorf("playCommand() error = %v, want playback.ErrInvalidSpeed", err)
	}
}

// TestOpenApp_MigratesSchema verifies openApp brings up a usable store.
func TestOpenApp_MigratesSchema(t *testing.T) {
	configPath := writeTestConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	app, err := openApp(ctx, configPath, false)
	if err != nil {
		t.Fatalf("openApp() error = %v", err)
	}
	defer app.Close()

	// The migrated schema must accept a run straight away.
	runID, err := app.store.CreateRun(ctx, time.Now())
	if err != nil {
		t.Fatalf("CreateRun() on migrated database error = %v", err)
	}
	if runID == 0 {
		t.Error("CreateRun() returned id 0")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("MQTTTAPE_CONFIG")
	defer os.Setenv("MQTTTAPE_CONFIG", originalEnv)

	os.Unsetenv("MQTTTAPE_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("MQTTTAPE_CONFIG")
	defer os.Setenv("MQTTTAPE_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("MQTTTAPE_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}
