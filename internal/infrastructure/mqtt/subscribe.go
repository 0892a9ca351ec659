package mqtt

import (
	"fmt"
)

// Subscribe registers a handler for messages matching the specified topic filter.
//
// Filters can include MQTT wildcards:
//   - + (single-level): "sensors/+/temperature" matches any device
//   - # (multi-level): "sensors/#" matches the whole subtree
//
// The handler receives the concrete topic of each message, never the filter.
//
// Subscriptions are automatically restored if the connection is lost and
// reconnected (tracked internally).
//
// Parameters:
//   - filter: The topic filter to subscribe to
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//   - handler: Callback function invoked for each message
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Subscribe(filter string, qos byte, handler MessageHandler) error {
	// Validate inputs
	if filter == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	// Check connection state
	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Track subscription for reconnection restoration
	c.subMu.Lock()
	c.subscriptions[filter] = subscription{
		filter:  filter,
		qos:     qos,
		handler: handler,
	}
	c.subMu.Unlock()

	// Subscribe with wrapped handler (includes panic recovery)
	token := c.client.Subscribe(filter, qos, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultOpTimeout) {
		// Remove from tracking since subscription failed
		c.subMu.Lock()
		delete(c.subscriptions, filter)
		c.subMu.Unlock()
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultOpTimeout)
	}
	if err := token.Error(); err != nil {
		// Remove from tracking since subscription failed
		c.subMu.Lock()
		delete(c.subscriptions, filter)
		c.subMu.Unlock()
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}

// SubscribeMultiple registers one handler for a batch of topic filters.
//
// All filters are subscribed in a single MQTT SUBSCRIBE packet. The whole
// batch succeeds or fails together - on failure no filter is tracked.
//
// Parameters:
//   - filters: Topic filters to subscribe to (wildcards allowed)
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//   - handler: Callback function invoked for each message on any filter
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) SubscribeMultiple(filters []string, qos byte, handler MessageHandler) error {
	// Validate inputs
	if len(filters) == 0 {
		return fmt.Errorf("%w: no topic filters", ErrSubscribeFailed)
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	topicQoS := make(map[string]byte, len(filters))
	for _, filter := range filters {
		if filter == "" {
			return ErrInvalidTopic
		}
		topicQoS[filter] = qos
	}

	// Check connection state
	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Track subscriptions for reconnection restoration
	c.subMu.Lock()
	for _, filter := range filters {
		c.subscriptions[filter] = subscription{
			filter:  filter,
			qos:     qos,
			handler: handler,
		}
	}
	c.subMu.Unlock()

	token := c.client.SubscribeMultiple(topicQoS, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultOpTimeout) {
		c.untrack(filters)
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultOpTimeout)
	}
	if err := token.Error(); err != nil {
		c.untrack(filters)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}

// untrack removes a batch of filters from the subscription table.
func (c *Client) untrack(filters []string) {
	c.subMu.Lock()
	for _, filter := range filters {
		delete(c.subscriptions, filter)
	}
	c.subMu.Unlock()
}

// Unsubscribe removes subscriptions and stops receiving messages for the given filters.
//
// After unsubscribing, the handler will no longer be called for new messages
// on these filters. Any messages in flight may still be delivered.
//
// Parameters:
//   - filters: The exact topic filters that were subscribed to
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Unsubscribe(filters ...string) error {
	// Validate inputs
	if len(filters) == 0 {
		return ErrInvalidTopic
	}
	for _, filter := range filters {
		if filter == "" {
			return ErrInvalidTopic
		}
	}

	// Check connection state
	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Remove from tracking
	c.untrack(filters)

	// Unsubscribe from broker
	token := c.client.Unsubscribe(filters...)
	if !token.WaitTimeout(defaultOpTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrUnsubscribeFailed, defaultOpTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}

	return nil
}

// SubscriptionCount returns the number of active subscriptions.
//
// This can be useful for monitoring and debugging.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription checks if a subscription exists for the given filter.
//
// Note: This checks only the exact filter string, not pattern matching.
func (c *Client) HasSubscription(filter string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, exists := c.subscriptions[filter]
	return exists
}
