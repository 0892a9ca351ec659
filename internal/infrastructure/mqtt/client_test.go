package mqtt

import (
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/mqtt-tape/internal/infrastructure/config"
)

// Unit tests that do not require a running broker.
// Broker-dependent tests live in integration_test.go behind the
// integration build tag.

func TestCloseNil(t *testing.T) {
	client := &Client{}
	err := client.Close()
	if err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestClientID(t *testing.T) {
	t.Run("appends random suffix", func(t *testing.T) {
		a := clientID("mqtttape")
		b := clientID("mqtttape")

		if !strings.HasPrefix(a, "mqtttape-") {
			t.Errorf("clientID() = %v, want mqtttape- prefix", a)
		}
		if a == b {
			t.Error("two generated client IDs should differ")
		}
	})

	t.Run("empty base falls back to default", func(t *testing.T) {
		id := clientID("")
		if !strings.HasPrefix(id, "mqtttape-") {
			t.Errorf("clientID(\"\") = %v, want mqtttape- prefix", id)
		}
	})
}

func TestBuildClientOptions(t *testing.T) {
	t.Run("plain tcp broker", func(t *testing.T) {
		cfg := config.MQTTConfig{
			Broker: config.MQTTBrokerConfig{
				Host:     "broker.local",
				Port:     1883,
				ClientID: "test",
			},
		}

		opts := buildClientOptions(cfg)

		if len(opts.Servers) != 1 {
			t.Fatalf("expected 1 broker, got %d", len(opts.Servers))
		}
		if got := opts.Servers[0].String(); got != "tcp://broker.local:1883" {
			t.Errorf("broker URL = %v, want tcp://broker.local:1883", got)
		}
	})

	t.Run("tls broker uses ssl scheme", func(t *testing.T) {
		cfg := config.MQTTConfig{
			Broker: config.MQTTBrokerConfig{
				Host:     "broker.local",
				Port:     8883,
				ClientID: "test",
				TLS:      true,
			},
		}

		opts := buildClientOptions(cfg)

		if got := opts.Servers[0].String(); got != "ssl://broker.local:8883" {
			t.Errorf("broker URL = %v, want ssl://broker.local:8883", got)
		}
		if opts.TLSConfig == nil {
			t.Fatal("expected TLS config to be set")
		}
		if opts.TLSConfig.InsecureSkipVerify {
			t.Error("InsecureSkipVerify should be false by default")
		}
	})

	t.Run("tls_insecure skips verification", func(t *testing.T) {
		cfg := config.MQTTConfig{
			Broker: config.MQTTBrokerConfig{
				Host:        "broker.local",
				Port:        8883,
				ClientID:    "test",
				TLS:         true,
				TLSInsecure: true,
			},
		}

		opts := buildClientOptions(cfg)

		if opts.TLSConfig == nil || !opts.TLSConfig.InsecureSkipVerify {
			t.Error("expected InsecureSkipVerify = true")
		}
	})

	t.Run("credentials applied when username set", func(t *testing.T) {
		cfg := config.MQTTConfig{
			Broker: config.MQTTBrokerConfig{Host: "h", Port: 1883, ClientID: "test"},
			Auth:   config.MQTTAuthConfig{Username: "user", Password: "pass"},
		}

		opts := buildClientOptions(cfg)

		if opts.Username != "user" || opts.Password != "pass" {
			t.Errorf("credentials = %v/%v, want user/pass", opts.Username, opts.Password)
		}
	})
}

func TestSubscribeValidation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	t.Run("empty filter", func(t *testing.T) {
		if err := client.Subscribe("", 0, handler); !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("Subscribe() error = %v, want ErrInvalidTopic", err)
		}
	})

	t.Run("invalid qos", func(t *testing.T) {
		if err := client.Subscribe("a/b", 3, handler); !errors.Is(err, ErrInvalidQoS) {
			t.Errorf("Subscribe() error = %v, want ErrInvalidQoS", err)
		}
	})

	t.Run("nil handler", func(t *testing.T) {
		if err := client.Subscribe("a/b", 0, nil); !errors.Is(err, ErrSubscribeFailed) {
			t.Errorf("Subscribe() error = %v, want ErrSubscribeFailed", err)
		}
	})

	t.Run("not connected", func(t *testing.T) {
		if err := client.Subscribe("a/b", 0, handler); !errors.Is(err, ErrNotConnected) {
			t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
		}
	})
}

func TestSubscribeMultipleValidation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	t.Run("no filters", func(t *testing.T) {
		if err := client.SubscribeMultiple(nil, 0, handler); !errors.Is(err, ErrSubscribeFailed) {
			t.Errorf("SubscribeMultiple() error = %v, want ErrSubscribeFailed", err)
		}
	})

	t.Run("empty filter in batch", func(t *testing.T) {
		err := client.SubscribeMultiple([]string{"a/b", ""}, 0, handler)
		if !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("SubscribeMultiple() error = %v, want ErrInvalidTopic", err)
		}
	})

	t.Run("not connected", func(t *testing.T) {
		err := client.SubscribeMultiple([]string{"a/b"}, 0, handler)
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("SubscribeMultiple() error = %v, want ErrNotConnected", err)
		}
		if client.SubscriptionCount() != 0 {
			t.Error("failed batch subscribe should not leave tracked filters")
		}
	})
}

func TestPublishValidation(t *testing.T) {
	client := &Client{}

	t.Run("empty topic", func(t *testing.T) {
		if err := client.Publish("", []byte("x"), 0, false); !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("Publish() error = %v, want ErrInvalidTopic", err)
		}
	})

	t.Run("invalid qos", func(t *testing.T) {
		if err := client.Publish("a/b", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
			t.Errorf("Publish() error = %v, want ErrInvalidQoS", err)
		}
	})

	t.Run("oversized payload", func(t *testing.T) {
		big := make([]byte, maxPayloadSize+1)
		if err := client.Publish("a/b", big, 0, false); !errors.Is(err, ErrPublishFailed) {
			t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
		}
	})

	t.Run("not connected", func(t *testing.T) {
		if err := client.Publish("a/b", []byte("x"), 0, false); !errors.Is(err, ErrNotConnected) {
			t.Errorf("Publish() error = %v, want ErrNotConnected", err)
		}
	})
}

func TestSubscriptionTracking(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	client.subscriptions["a/#"] = subscription{filter: "a/#"}

	if !client.HasSubscription("a/#") {
		t.Error("HasSubscription(a/#) = false, want true")
	}
	if client.HasSubscription("b/#") {
		t.Error("HasSubscription(b/#) = true, want false")
	}
	if got := client.SubscriptionCount(); got != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", got)
	}

	client.untrack([]string{"a/#"})
	if client.SubscriptionCount() != 0 {
		t.Error("untrack should remove the filter")
	}
}
