package mqtt

import (
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Sentinels returned by the bus client. Match them with errors.Is; the
// failure variants wrap the broker error when there is one.
var (
	ErrNotConnected      = errors.New("mqtt: client not connected")
	ErrConnectionFailed  = errors.New("mqtt: connection failed")
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")
	ErrInvalidQoS        = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrInvalidTopic      = errors.New("mqtt: empty topic")
)

// await blocks on a paho token for at most d and folds the outcome into
// kind, so callers see one sentinel whether the broker timed out or refused.
func await(tok pahomqtt.Token, d time.Duration, kind error) error {
	if !tok.WaitTimeout(d) {
		return fmt.Errorf("%w: no broker ack within %v", kind, d)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return nil
}

// checkRoute validates the topic and QoS shared by publish and subscribe.
func checkRoute(topic string, qos byte) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	}
	return nil
}
