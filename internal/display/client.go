package display

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nerrad567/showctl/internal/infrastructure/mqtt"
)

// Transport is the subset of the MQTT client the display client needs.
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

// playback tracks one in-flight Play call.
type playback struct {
	media     string
	commandID string
	started   bool
	done      chan struct{}
}

// positionWaiter tracks one in-flight WaitUntilPosition call.
type positionWaiter struct {
	target int64
	done   chan error
}

// Client controls one media player through its MQTT bridge.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	transport Transport
	player    string
	logger    Logger

	mu        sync.Mutex
	last      Report
	playbacks map[*playback]struct{}
	waiters   map[*positionWaiter]struct{}
}

// NewClient creates a display client for player and subscribes to its
// state reports.
func NewClient(transport Transport, player string, logger Logger) (*Client, error) {
	if transport == nil {
		return nil, ErrUnavailable
	}
	if logger == nil {
		logger = noopLogger{}
	}

	c := &Client{
		transport: transport,
		player:    player,
		logger:    logger,
		last:      Report{Status: StatusIdle},
		playbacks: make(map[*playback]struct{}),
		waiters:   make(map[*positionWaiter]struct{}),
	}

	topic := mqtt.Topics{}.DeviceState(mqtt.KindDisplay, player)
	if err := transport.Subscribe(topic, 1, c.handleReport); err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	return c, nil
}

// Play starts media and blocks until its playback ends, is stopped, or is
// replaced by other media. It returns ctx.Err() if ctx is cancelled first;
// the player keeps running in that case.
func (c *Client) Play(ctx context.Context, media Media) error {
	if media.Path == "" {
		return ErrInvalidMedia
	}

	cmd := mqtt.NewCommand(c.player, "play", playParams(media))
	pb := &playback{media: media.Path, commandID: cmd.ID, done: make(chan struct{})}

	c.mu.Lock()
	c.playbacks[pb] = struct{}{}
	c.mu.Unlock()
	defer c.dropPlayback(pb)

	if err := c.publish(cmd); err != nil {
		return err
	}
	c.logger.Debug("playback requested", "player", c.player, "media", media.Path)

	select {
	case <-pb.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start sends the play command for media and returns without waiting for
// playback to end.
func (c *Client) Start(ctx context.Context, media Media) error {
	if media.Path == "" {
		return ErrInvalidMedia
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.publish(mqtt.NewCommand(c.player, "play", playParams(media))); err != nil {
		return err
	}
	c.logger.Debug("playback started", "player", c.player, "media", media.Path)
	return nil
}

// Pause toggles pause on the current media.
func (c *Client) Pause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.publish(mqtt.NewCommand(c.player, "pause", nil))
}

// Stop ends playback and shows the placeholder frame. Any Play call
// blocked on the current media returns.
func (c *Client) Stop(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.publish(mqtt.NewCommand(c.player, "stop", nil))
}

// Placeholder shows the idle frame. Used at startup before any scene runs.
func (c *Client) Placeholder(ctx context.Context) error {
	return c.Stop(ctx)
}

// SetPosition seeks the current media.
func (c *Client) SetPosition(ctx context.Context, ms int64) error {
	if ms < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPosition, ms)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.publish(mqtt.NewCommand(c.player, "seek", map[string]any{"position_ms": ms}))
}

// Position returns the last reported playback position in milliseconds.
func (c *Client) Position() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last.PositionMS
}

// Status returns the last reported player status.
func (c *Client) Status() Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// WaitUntilPosition blocks until a state report at or past ms arrives.
//
// Only reports received after the call count: a stale position from media
// that was playing before is never taken as reached.
func (c *Client) WaitUntilPosition(ctx context.Context, ms int64) error {
	if ms < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPosition, ms)
	}

	w := &positionWaiter{target: ms, done: make(chan error, 1)}

	c.mu.Lock()
	c.waiters[w] = struct{}{}
	c.mu.Unlock()

	select {
	case err := <-w.done:
		return err
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.waiters, w)
		c.mu.Unlock()
		return ctx.Err()
	}
}

// Reset releases every position waiter with ErrReset.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for w := range c.waiters {
		w.done <- ErrReset
		delete(c.waiters, w)
	}
}

// Player returns the player identifier this client controls.
func (c *Client) Player() string {
	return c.player
}

func playParams(media Media) map[string]any {
	params := map[string]any{"path": media.Path}
	if media.StartMS > 0 {
		params["start_ms"] = media.StartMS
	}
	return params
}

func (c *Client) publish(cmd mqtt.Command) error {
	topic := mqtt.Topics{}.DeviceCommand(mqtt.KindDisplay, c.player)
	if err := c.transport.PublishJSON(topic, cmd, false); err != nil {
		return fmt.Errorf("publishing %s to %q: %w", cmd.Command, topic, err)
	}
	return nil
}

func (c *Client) dropPlayback(pb *playback) {
	c.mu.Lock()
	delete(c.playbacks, pb)
	c.mu.Unlock()
}

func (c *Client) handleReport(_ string, payload []byte) error {
	var r Report
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("decoding player report: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.last = r

	for pb := range c.playbacks {
		if c.playbackDone(pb, r) {
			close(pb.done)
			delete(c.playbacks, pb)
		}
	}

	if r.Status == StatusPlaying || r.Status == StatusPaused {
		for w := range c.waiters {
			if r.PositionMS >= w.target {
				w.done <- nil
				delete(c.waiters, w)
			}
		}
	}
	return nil
}

// playbackDone advances pb with report r and reports whether it is over.
// Must be called with c.mu held.
func (c *Client) playbackDone(pb *playback, r Report) bool {
	if !pb.started {
		switch {
		case r.CommandID == pb.commandID && r.finished():
			// The bridge could not play it at all.
			c.logger.Warn("playback finished before starting", "player", c.player, "media", pb.media, "status", r.Status)
			return true
		case r.Status == StatusPlaying && r.Media == pb.media:
			pb.started = true
		}
		return false
	}
	return r.finished() || (r.Media != "" && r.Media != pb.media)
}
