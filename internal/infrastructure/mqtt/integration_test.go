//go:build integration

package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/mqtt-tape/internal/infrastructure/config"
)

// Integration tests for broker connectivity.
// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "mqtttape-test",
			TLS:      false,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestConnect(t *testing.T) {
	client, err := Connect(integrationConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
}

func TestConnectInvalidBroker(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.Port = 19999 // Nothing listens here

	_, err := Connect(cfg)
	if err == nil {
		t.Fatal("Connect() expected error for invalid broker")
	}
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	sub, err := Connect(integrationConfig())
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer sub.Close()

	pub, err := Connect(integrationConfig())
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pub.Close()

	var mu sync.Mutex
	var received []string
	done := make(chan struct{})

	err = sub.SubscribeMultiple([]string{"mqtttape/test/#"}, 1,
		func(topic string, payload []byte) error {
			mu.Lock()
			received = append(received, topic+"="+string(payload))
			if len(received) == 2 {
				close(done)
			}
			mu.Unlock()
			return nil
		})
	if err != nil {
		t.Fatalf("SubscribeMultiple() error = %v", err)
	}

	if err := pub.Publish("mqtttape/test/a", []byte("1"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := pub.Publish("mqtttape/test/b", []byte("2"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for messages")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Errorf("received %d messages, want 2", len(received))
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	client, err := Connect(integrationConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	err = client.SubscribeMultiple([]string{"mqtttape/unsub/#"}, 1,
		func(string, []byte) error { return nil })
	if err != nil {
		t.Fatalf("SubscribeMultiple() error = %v", err)
	}

	if err := client.Unsubscribe("mqtttape/unsub/#"); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}

	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after unsubscribe, want 0", client.SubscriptionCount())
	}
}
