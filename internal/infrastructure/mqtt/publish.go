package mqtt

import "fmt"

// maxPayloadSize caps publishes at 1MB, in line with typical broker limits.
const maxPayloadSize = 1 << 20

// Publish sends a message to the given topic.
//
// QoS 0 is fire and forget, 1 guarantees delivery with possible
// duplicates, 2 guarantees exactly-once. Retained messages are stored
// by the broker and delivered to new subscribers immediately; use them
// for state topics, never for commands.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes",
			ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, operationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishJSON publishes a payload with the client's configured default QoS,
// not retained. This is the common case for bridge commands.
func (c *Client) PublishJSON(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), false)
}
