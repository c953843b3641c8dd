package lighting

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nerrad567/showctl/internal/infrastructure/mqtt"
)

// Transport is the subset of the MQTT client the lighting client needs.
type Transport interface {
	PublishJSON(topic string, v any, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Logger defines the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Client controls one bulb through its MQTT bridge.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	transport Transport
	bulb      string
	logger    Logger

	mu      sync.RWMutex
	current State
}

// NewClient creates a lighting client for bulb and subscribes to its state
// reports.
func NewClient(transport Transport, bulb string, logger Logger) (*Client, error) {
	if transport == nil {
		return nil, ErrUnavailable
	}
	if logger == nil {
		logger = noopLogger{}
	}

	c := &Client{transport: transport, bulb: bulb, logger: logger}

	topic := mqtt.Topics{}.DeviceState(mqtt.KindLighting, bulb)
	if err := transport.Subscribe(topic, 1, c.handleState); err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	return c, nil
}

// Set sends a light state to the bulb.
//
// The command is fire-and-forget on the bus; Set returns once the broker
// has accepted it. An out-of-range state is rejected before publishing.
func (c *Client) Set(ctx context.Context, state State) error {
	if state == nil {
		return fmt.Errorf("%w: nil state", ErrInvalidState)
	}
	if err := state.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	w := toWire(state)
	params := map[string]any{
		"mode":       w.Mode,
		"brightness": w.Brightness,
	}
	switch w.Mode {
	case ModeTemperature:
		params["kelvin"] = w.Kelvin
	case ModeColor:
		params["hue"] = w.Hue
		params["saturation"] = w.Saturation
	}

	topic := mqtt.Topics{}.DeviceCommand(mqtt.KindLighting, c.bulb)
	if err := c.transport.PublishJSON(topic, mqtt.NewCommand(c.bulb, "set", params), false); err != nil {
		return fmt.Errorf("publishing to %q: %w", topic, err)
	}

	c.logger.Debug("light state published", "bulb", c.bulb, "mode", w.Mode, "brightness", w.Brightness)
	return nil
}

// Current returns the last state the bulb reported, if any.
func (c *Client) Current() (State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.current != nil
}

// Bulb returns the bulb identifier this client controls.
func (c *Client) Bulb() string {
	return c.bulb
}

func (c *Client) handleState(_ string, payload []byte) error {
	var w wireState
	if err := json.Unmarshal(payload, &w); err != nil {
		return fmt.Errorf("decoding state report: %w", err)
	}
	state, err := fromWire(w)
	if err != nil {
		c.logger.Warn("ignoring light state report", "bulb", c.bulb, "error", err)
		return nil
	}

	c.mu.Lock()
	c.current = state
	c.mu.Unlock()
	return nil
}
