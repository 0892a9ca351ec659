// Package mqtt provides MQTT client connectivity for mqtt-tape.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic filter subscriptions with wildcard support
//   - Connection health monitoring
//
// # Architecture
//
// Both engines consume this package at their boundary to the broker:
// the recorder subscribes to the configured topic filters and hands every
// received message to its store callback; playback publishes previously
// recorded messages back out. Each engine instance owns its own Client -
// there is no shared process-wide broker state, so a recorder and a player
// can coexist in one process against different brokers.
//
// # Security Considerations
//
//   - TLS should be enabled for anything beyond local development
//   - tls_insecure disables certificate verification and is development-only
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.SubscribeMultiple([]string{"sensors/#"}, 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
