package influxdb_test

import (
	"errors"
	"testing"

	"github.com/nerrad567/mqtt-tape/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-tape/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "mqtttape-dev-token",
		Org:           "mqtttape",
		Bucket:        "metrics",
		BatchSize:     100,
		FlushInterval: 1, // 1 second for faster test feedback
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running locally.
func skipIfNoInfluxDB(t *testing.T) *influxdb.Client {
	t.Helper()

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	return client
}

func TestConnectDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnectUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:19999" // Nothing listens here

	_, err := influxdb.Connect(cfg)
	if err == nil {
		t.Fatal("Connect() expected error for unreachable server")
	}
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteRecordedMessage(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	defer client.Close()

	// Non-blocking write; just verify it does not panic and flushes cleanly.
	client.WriteRecordedMessage(1, "sensors/temperature", 42)
	client.WritePlayedMessage(1, "sensors/temperature", 42)
	client.Flush()
}
