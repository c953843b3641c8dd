package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/showctl/internal/infrastructure/config"
	"github.com/nerrad567/showctl/internal/infrastructure/logging"
)

// Event channels a client may subscribe to.
const (
	ChannelSceneState    = "scene.state_changed"
	ChannelActionSettled = "action.settled"
)

// Channels lists every event channel.
func Channels() []string {
	return []string{ChannelSceneState, ChannelActionSettled}
}

// Frame types on the socket.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

const (
	// outboxSize is how many frames may queue for a slow client before
	// further frames are dropped.
	outboxSize = 256

	fallbackPingInterval = 30 * time.Second
	fallbackPongTimeout  = 10 * time.Second
	fallbackMaxFrame     = 8192
)

// WSMessage is the envelope for every frame in both directions.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe frames.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub fans scene events out to connected operators.
type Hub struct {
	logger       *logging.Logger
	pingInterval time.Duration
	pongWait     time.Duration
	maxFrame     int64

	// onCount, when set, receives the connection count after each change.
	onCount func(int)

	mu    sync.RWMutex
	conns map[*wsConn]struct{}
}

// wsConn is one operator socket. Frames queue on outbox; done closes
// exactly once when the hub lets go of the connection.
type wsConn struct {
	hub      *Hub
	ws       *websocket.Conn
	operator string

	outbox   chan []byte
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	channels map[string]bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The single-use ticket already authenticated this request.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub builds a hub from cfg, using fallbacks for unset values.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	h := &Hub{
		logger:       logger,
		pingInterval: fallbackPingInterval,
		pongWait:     fallbackPongTimeout,
		maxFrame:     fallbackMaxFrame,
		conns:        make(map[*wsConn]struct{}),
	}
	if cfg.PingInterval > 0 {
		h.pingInterval = time.Duration(cfg.PingInterval) * time.Second
	}
	if cfg.PongTimeout > 0 {
		h.pongWait = time.Duration(cfg.PongTimeout) * time.Second
	}
	if cfg.MaxMessageSize > 0 {
		h.maxFrame = int64(cfg.MaxMessageSize)
	}
	return h
}

// Run holds the hub open until ctx ends, then hangs up on everyone.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	for c := range h.conns {
		c.stop()
		c.ws.Close()
		delete(h.conns, c)
	}
	h.mu.Unlock()
	h.countChanged(0)
}

// Broadcast sends payload to every connection subscribed to channel.
func (h *Hub) Broadcast(channel string, payload any) {
	frame, err := encodeFrame(WSMessage{Type: WSTypeEvent, EventType: channel, Payload: payload})
	if err != nil {
		h.logger.Error("encoding websocket event", "channel", channel, "error", err)
		return
	}

	// Snapshot so no connection lock is taken under the hub lock.
	h.mu.RLock()
	targets := make([]*wsConn, 0, len(h.conns))
	for c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if c.subscribed(channel) {
			c.enqueue(frame)
		}
	}
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) add(c *wsConn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()

	h.countChanged(n)
	h.logger.Debug("websocket connected", "operator", c.operator, "clients", n)
}

func (h *Hub) remove(c *wsConn) {
	h.mu.Lock()
	_, ok := h.conns[c]
	delete(h.conns, c)
	n := len(h.conns)
	h.mu.Unlock()

	c.stop()
	if ok {
		h.countChanged(n)
		h.logger.Debug("websocket disconnected", "operator", c.operator, "clients", n)
	}
}

func (h *Hub) countChanged(n int) {
	if h.onCount != nil {
		h.onCount(n)
	}
}

// handleWebSocket redeems the ticket query parameter and upgrades.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	operator, err := s.tickets.Redeem(ticket)
	if err != nil {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("websocket upgrade failed", "operator", operator, "error", err)
		return
	}

	c := &wsConn{
		hub:      s.hub,
		ws:       ws,
		operator: operator,
		outbox:   make(chan []byte, outboxSize),
		done:     make(chan struct{}),
		channels: make(map[string]bool),
	}
	s.hub.add(c)
	go c.writeLoop()
	go c.readLoop()
}

func (c *wsConn) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// readLoop handles inbound frames until the socket fails. Any inbound
// frame or pong extends the read deadline.
func (c *wsConn) readLoop() {
	defer func() {
		c.hub.remove(c)
		c.ws.Close()
	}()

	window := c.hub.pingInterval + c.hub.pongWait
	extend := func(string) error { return c.ws.SetReadDeadline(time.Now().Add(window)) }

	c.ws.SetReadLimit(c.hub.maxFrame)
	_ = extend("") //nolint:errcheck // a dead socket fails the first read anyway
	c.ws.SetPongHandler(extend)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "operator", c.operator, "error", err)
			}
			return
		}
		_ = extend("") //nolint:errcheck // checked by the next read
		c.dispatch(data)
	}
}

// writeLoop is the only writer on the socket.
func (c *wsConn) writeLoop() {
	ping := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ping.Stop()
		c.ws.Close()
	}()

	for {
		var err error
		select {
		case frame := <-c.outbox:
			err = c.write(websocket.TextMessage, frame)
		case <-ping.C:
			err = c.write(websocket.PingMessage, nil)
		case <-c.done:
			_ = c.write(websocket.CloseMessage, nil) //nolint:errcheck // closing regardless
			return
		}
		if err != nil {
			return
		}
	}
}

func (c *wsConn) write(kind int, data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.hub.pongWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(kind, data)
}

func (c *wsConn) dispatch(data []byte) {
	var in struct {
		Type    string          `json:"type"`
		ID      string          `json:"id"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		c.reject("", "invalid JSON message")
		return
	}

	switch in.Type {
	case WSTypePing:
		c.reply(WSMessage{Type: WSTypePong, ID: in.ID})
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sub WSSubscribePayload
		if err := json.Unmarshal(in.Payload, &sub); err != nil || len(sub.Channels) == 0 {
			c.reject(in.ID, "payload must list channels")
			return
		}
		if i := slices.IndexFunc(sub.Channels, func(ch string) bool { return !slices.Contains(Channels(), ch) }); i >= 0 {
			c.reject(in.ID, "unknown channel: "+sub.Channels[i])
			return
		}
		on := in.Type == WSTypeSubscribe
		c.setChannels(sub.Channels, on)
		key := "unsubscribed"
		if on {
			key = "subscribed"
		}
		c.reply(WSMessage{Type: WSTypeResponse, ID: in.ID, Payload: map[string]any{key: sub.Channels}})
	default:
		c.reject(in.ID, "unknown message type: "+in.Type)
	}
}

func (c *wsConn) setChannels(channels []string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		if on {
			c.channels[ch] = true
		} else {
			delete(c.channels, ch)
		}
	}
}

func (c *wsConn) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

// enqueue queues frame for the write loop. A full outbox drops the frame;
// a stopped connection discards it.
func (c *wsConn) enqueue(frame []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.outbox <- frame:
	case <-c.done:
	default:
		c.hub.logger.Warn("websocket outbox full, dropping frame", "operator", c.operator)
	}
}

func (c *wsConn) reply(msg WSMessage) {
	if frame, err := encodeFrame(msg); err == nil {
		c.enqueue(frame)
	}
}

func (c *wsConn) reject(id, reason string) {
	c.reply(WSMessage{Type: WSTypeError, ID: id, Payload: map[string]string{"message": reason}})
}

// encodeFrame stamps msg with the current time and marshals it.
func encodeFrame(msg WSMessage) ([]byte, error) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	return json.Marshal(msg)
}
