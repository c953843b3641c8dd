package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/showctl/internal/infrastructure/config"
)

// Logger is the subset of logging.Logger the client reports through.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler receives one inbound message. It runs on a paho goroutine,
// so it must return quickly. Errors are logged and go no further.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// hooks are the caller-supplied callbacks, swapped as one unit.
type hooks struct {
	onConnect    func()
	onDisconnect func(error)
	logger       Logger
}

// Client is the core's connection to the show bus. It is safe for
// concurrent use. Subscriptions survive reconnects.
type Client struct {
	paho pahomqtt.Client
	cfg  config.MQTTConfig

	online atomic.Bool

	subsMu sync.RWMutex
	subs   map[string]subscription

	hooksMu sync.RWMutex
	hooks   hooks
}

// Connect dials the broker described by cfg and waits for the first
// session. The offline will is registered before dialling, and every
// session (first or resumed) announces the core online and replays the
// tracked subscriptions.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := newClient(cfg)
	if err := await(c.paho.Connect(), defaultConnectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}
	// The paho OnConnect callback may not have run yet.
	c.online.Store(true)
	return c, nil
}

func newClient(cfg config.MQTTConfig) *Client {
	c := &Client{cfg: cfg, subs: make(map[string]subscription)}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.sessionUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.sessionDown(err) })

	c.paho = pahomqtt.NewClient(opts)
	return c
}

func (c *Client) sessionUp() {
	c.online.Store(true)

	c.subsMu.RLock()
	for topic, s := range c.subs {
		c.paho.Subscribe(topic, s.qos, c.wrapHandler(s.handler))
	}
	c.subsMu.RUnlock()

	c.paho.Publish(Topics{}.SystemStatus(), c.defaultQoS(), true, buildStatusPayload(c.cfg.Broker.ClientID, "online", ""))

	if fn := c.currentHooks().onConnect; fn != nil {
		fn()
	}
}

func (c *Client) sessionDown(err error) {
	c.online.Store(false)
	if fn := c.currentHooks().onDisconnect; fn != nil {
		fn(err)
	}
}

// Close announces a graceful offline status when it can, then disconnects.
// It is safe on a nil or already closed client.
func (c *Client) Close() error {
	if c == nil || c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		status := buildStatusPayload(c.cfg.Broker.ClientID, "offline", "graceful_shutdown")
		c.paho.Publish(Topics{}.SystemStatus(), c.defaultQoS(), true, status).WaitTimeout(defaultPublishTimeout)
	}
	c.paho.Disconnect(defaultDisconnectQuiesce)
	c.online.Store(false)
	return nil
}

// HealthCheck fails when the bus session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether both our view and paho's agree the session is up.
func (c *Client) IsConnected() bool {
	return c.online.Load() && c.paho.IsConnected()
}

// SetOnConnect registers fn for the first session and every reconnect.
func (c *Client) SetOnConnect(fn func()) {
	c.hooksMu.Lock()
	c.hooks.onConnect = fn
	c.hooksMu.Unlock()
}

// SetOnDisconnect registers fn for lost sessions.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.hooksMu.Lock()
	c.hooks.onDisconnect = fn
	c.hooksMu.Unlock()
}

// SetLogger routes handler errors and recovered panics to logger. Without
// one they are discarded.
func (c *Client) SetLogger(logger Logger) {
	c.hooksMu.Lock()
	c.hooks.logger = logger
	c.hooksMu.Unlock()
}

func (c *Client) currentHooks() hooks {
	c.hooksMu.RLock()
	defer c.hooksMu.RUnlock()
	return c.hooks
}

// wrapHandler turns a MessageHandler into a paho callback that never panics.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		log := c.currentHooks().logger
		defer func() {
			if r := recover(); r != nil && log != nil {
				log.Error("bus handler panicked", "topic", msg.Topic(), "panic", r)
			}
		}()
		if err := handler(msg.Topic(), msg.Payload()); err != nil && log != nil {
			log.Warn("bus handler failed", "topic", msg.Topic(), "error", err)
		}
	}
}
