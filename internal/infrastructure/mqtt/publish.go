package mqtt

import (
	"encoding/json"
	"fmt"
)

// maxPayloadSize caps outgoing payloads. Bridge commands are a few hundred
// bytes, so anything near this is a bug upstream.
const maxPayloadSize = 1 << 20

// Publish sends payload on topic and waits for the broker ack.
//
// Bridge commands are never retained: a bridge that reconnects must not
// replay a stale "play". Core state mirrors are retained so late
// subscribers see the current scene state immediately.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := checkRoute(topic, qos); err != nil {
		return err
	}
	if n := len(payload); n > maxPayloadSize {
		return fmt.Errorf("%w: %d byte payload over the %d byte cap", ErrPublishFailed, n, maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return await(c.paho.Publish(topic, qos, retained, payload), defaultPublishTimeout, ErrPublishFailed)
}

// PublishJSON encodes v and publishes it at the configured QoS.
func (c *Client) PublishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding %s payload: %w", ErrPublishFailed, topic, err)
	}
	return c.Publish(topic, payload, c.defaultQoS(), retained)
}

// defaultQoS is cfg.QoS, or 1 when the configured value is out of range.
func (c *Client) defaultQoS() byte {
	if q := c.cfg.QoS; q >= 0 && q <= maxQoS {
		return byte(q)
	}
	return 1
}
