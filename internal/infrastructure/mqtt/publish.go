package mqtt

import (
	"fmt"
)

// maxPayloadSize caps a single publish at 1MB. Device state and ack
// payloads are a few hundred bytes; anything near this limit is a bug.
const maxPayloadSize = 1 << 20

// Publish sends a payload to a topic and waits for broker acknowledgement
// at the given QoS. Retained publishes replace the broker's stored message
// for the topic; the bridge retains state and availability topics so a
// consumer joining late still sees the current picture.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
