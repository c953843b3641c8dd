package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/showctl/internal/infrastructure/config"
)

// testConfig returns an MQTT configuration pointing at a local broker.
// Unit tests in this file never connect; see integration_test.go for that.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "showctl-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// ─── Mock Dependencies ──────────────────────────────────────────────────────

// mockLogger implements Logger for testing.
type mockLogger struct {
	errors []string
	warns  []string
	mu     sync.Mutex
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *mockLogger) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors), len(l.warns)
}

// mockMessage implements pahomqtt.Message.
type mockMessage struct {
	topic   string
	payload []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 1 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 1 }
func (m mockMessage) Payload() []byte   { return m.payload }
func (m mockMessage) Ack()              {}

// =============================================================================
// Disconnected Client Tests
// =============================================================================

func TestPublish_Validation(t *testing.T) {
	c := newClient(testConfig())

	tests := []struct {
		name    string
		topic   string
		qos     byte
		payload []byte
		wantErr error
	}{
		{"empty topic", "", 1, nil, ErrInvalidTopic},
		{"invalid qos", "showctl/x", 3, nil, ErrInvalidQoS},
		{"oversized payload", "showctl/x", 1, make([]byte, maxPayloadSize+1), ErrPublishFailed},
		{"not connected", "showctl/x", 1, []byte("{}"), ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishJSON_EncodeError(t *testing.T) {
	c := newClient(testConfig())

	err := c.PublishJSON("showctl/x", make(chan int), false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON() error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := newClient(testConfig())
	noop := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("showctl/x", 5, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 5) error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("showctl/x", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("showctl/x", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) error = %v, want ErrNotConnected", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
}

func TestUnsubscribe_Validation(t *testing.T) {
	c := newClient(testConfig())

	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Unsubscribe("showctl/x"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe(disconnected) error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheck_Disconnected(t *testing.T) {
	c := newClient(testConfig())

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestClose_NilAndUnconnected(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
	if err := newClient(testConfig()).Close(); err != nil {
		t.Errorf("unconnected Close() error = %v", err)
	}
}

// =============================================================================
// Handler Wrapping
// =============================================================================

func TestWrapHandler_RecoversPanic(t *testing.T) {
	c := newClient(testConfig())
	logger := &mockLogger{}
	c.SetLogger(logger)

	wrapped := c.wrapHandler(func(string, []byte) error {
		panic("boom")
	})
	wrapped(nil, mockMessage{topic: "showctl/state/display/projector"})

	if errs, _ := logger.counts(); errs != 1 {
		t.Errorf("logged errors = %d, want 1", errs)
	}
}

func TestWrapHandler_LogsError(t *testing.T) {
	c := newClient(testConfig())
	logger := &mockLogger{}
	c.SetLogger(logger)

	var got string
	wrapped := c.wrapHandler(func(_ string, payload []byte) error {
		got = string(payload)
		return errors.New("bad payload")
	})
	wrapped(nil, mockMessage{topic: "showctl/x", payload: []byte("hello")})

	if got != "hello" {
		t.Errorf("handler payload = %q, want %q", got, "hello")
	}
	if _, warns := logger.counts(); warns != 1 {
		t.Errorf("logged warnings = %d, want 1", warns)
	}
}

func TestWrapHandler_NoLogger(t *testing.T) {
	c := newClient(testConfig())
	wrapped := c.wrapHandler(func(string, []byte) error { panic("boom") })

	// Must not propagate the panic.
	wrapped(nil, mockMessage{topic: "showctl/x"})
}

// =============================================================================
// Options and Payloads
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth.Username = "show"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [ssl://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "showctl-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "show" || opts.Password != "secret" {
		t.Errorf("credentials not applied: %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig = nil with TLS enabled")
	}
}

func TestBuildStatusPayload(t *testing.T) {
	var got statusPayload
	if err := json.Unmarshal(buildStatusPayload("core-1", "offline", "graceful_shutdown"), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Status != "offline" || got.ClientID != "core-1" || got.Reason != "graceful_shutdown" {
		t.Errorf("payload = %+v", got)
	}
	if got.Timestamp == "" {
		t.Error("timestamp missing")
	}
}

func TestDefaultQoS(t *testing.T) {
	tests := []struct {
		cfgQoS int
		want   byte
	}{
		{0, 0},
		{2, 2},
		{-1, 1},
		{7, 1},
	}
	for _, tt := range tests {
		cfg := testConfig()
		cfg.QoS = tt.cfgQoS
		if got := newClient(cfg).defaultQoS(); got != tt.want {
			t.Errorf("defaultQoS(%d) = %d, want %d", tt.cfgQoS, got, tt.want)
		}
	}
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DeviceCommand", topics.DeviceCommand(KindDisplay, "projector"), "showctl/command/display/projector"},
		{"DeviceState", topics.DeviceState(KindLighting, "stage-bulb"), "showctl/state/lighting/stage-bulb"},
		{"AllDeviceStates", topics.AllDeviceStates(), "showctl/state/+/+"},
		{"CoreSceneState", topics.CoreSceneState(3), "showctl/core/scene/3/state"},
		{"CoreActionSettled", topics.CoreActionSettled(3), "showctl/core/scene/3/settled"},
		{"SystemStatus", topics.SystemStatus(), "showctl/system/status"},
		{"AllTopics", topics.AllTopics(), "showctl/#"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
		if !strings.HasPrefix(tt.got, TopicPrefixDevice) {
			t.Errorf("%s not under %s", tt.name, TopicPrefixDevice)
		}
	}
}

func TestNewCommand(t *testing.T) {
	a := NewCommand("projector", "seek", map[string]any{"position_ms": 1200})
	b := NewCommand("projector", "seek", nil)

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("command IDs not unique: %q, %q", a.ID, b.ID)
	}
	if a.Device != "projector" || a.Command != "seek" || a.Source != "showctl" {
		t.Errorf("command = %+v", a)
	}
	if a.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}
