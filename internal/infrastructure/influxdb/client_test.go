package influxdb

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/showctl/internal/automation"
	"github.com/nerrad567/showctl/internal/infrastructure/config"
)

// ─── Mock Dependencies ──────────────────────────────────────────────

type mockWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (m *mockWriter) WritePoint(p *write.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, p)
}

func (m *mockWriter) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
}

func (m *mockWriter) written() []*write.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*write.Point(nil), m.points...)
}

type mockServer struct {
	healthy bool
	err     error
	closed  bool
}

func (m *mockServer) Ping(context.Context) (bool, error) { return m.healthy, m.err }
func (m *mockServer) Close()                             { m.closed = true }

func newTestClient() (*Client, *mockWriter, *mockServer) {
	w := &mockWriter{}
	s := &mockServer{healthy: true}
	return newClient(s, w, config.InfluxDBConfig{Enabled: true}), w, s
}

func tagValue(p *write.Point, key string) string {
	for _, tag := range p.TagList() {
		if tag.Key == key {
			return tag.Value
		}
	}
	return ""
}

func fieldValue(p *write.Point, key string) (interface{}, bool) {
	for _, field := range p.FieldList() {
		if field.Key == key {
			return field.Value, true
		}
	}
	return nil, false
}

// ─── Tests ──────────────────────────────────────────────────────────

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(context.Background(), config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Integration(t *testing.T) {
	url := os.Getenv("SHOWCTL_TEST_INFLUXDB_URL")
	if url == "" {
		t.Skip("SHOWCTL_TEST_INFLUXDB_URL not set, skipping integration test")
	}

	client, err := Connect(context.Background(), config.InfluxDBConfig{
		Enabled: true,
		URL:     url,
		Token:   os.Getenv("SHOWCTL_TEST_INFLUXDB_TOKEN"),
		Org:     "showctl",
		Bucket:  "timeline",
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestWriteSceneState(t *testing.T) {
	client, w, _ := newTestClient()
	at := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	client.WriteSceneState(automation.StateChange{
		SceneID:   2,
		SceneName: "finale",
		From:      automation.SceneIdle,
		To:        automation.ScenePlaying,
		At:        at,
	})

	points := w.written()
	if len(points) != 1 {
		t.Fatalf("points = %d, want 1", len(points))
	}
	p := points[0]
	if p.Name() != MeasurementSceneState {
		t.Errorf("Name() = %q, want %q", p.Name(), MeasurementSceneState)
	}
	if got := tagValue(p, "scene"); got != "finale" {
		t.Errorf("scene tag = %q, want finale", got)
	}
	if got := tagValue(p, "state"); got != "playing" {
		t.Errorf("state tag = %q, want playing", got)
	}
	if got := tagValue(p, "from"); got != "idle" {
		t.Errorf("from tag = %q, want idle", got)
	}
	if v, _ := fieldValue(p, "active"); v != int64(1) {
		t.Errorf("active field = %v, want 1", v)
	}
	if !p.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", p.Time(), at)
	}
}

func TestWriteSceneState_Stopped(t *testing.T) {
	client, w, _ := newTestClient()

	client.WriteSceneState(automation.StateChange{
		SceneName: "finale",
		From:      automation.SceneIdle,
		To:        automation.SceneStopped,
	})

	p := w.written()[0]
	if v, _ := fieldValue(p, "active"); v != int64(0) {
		t.Errorf("active field = %v, want 0", v)
	}
	if p.Time().IsZero() {
		t.Error("Time() is zero, want now")
	}
}

func TestWriteSettlement(t *testing.T) {
	client, w, _ := newTestClient()

	client.WriteSettlement(automation.Settlement{
		SceneName:  "finale",
		Action:     "fade",
		Reason:     automation.ReasonExternalIntercept,
		StartedAt:  time.Now().Add(-time.Second),
		SettledAt:  time.Now(),
		DurationMS: 1000,
		Error:      "interrupted",
	})

	p := w.written()[0]
	if p.Name() != MeasurementSettlement {
		t.Errorf("Name() = %q, want %q", p.Name(), MeasurementSettlement)
	}
	if got := tagValue(p, "reason"); got != string(automation.ReasonExternalIntercept) {
		t.Errorf("reason tag = %q", got)
	}
	if got := tagValue(p, "action"); got != "fade" {
		t.Errorf("action tag = %q, want fade", got)
	}
	if v, _ := fieldValue(p, "duration_ms"); v != int64(1000) {
		t.Errorf("duration_ms = %v, want 1000", v)
	}
	if v, _ := fieldValue(p, "started"); v != true {
		t.Errorf("started = %v, want true", v)
	}
	if v, ok := fieldValue(p, "error"); !ok || v != "interrupted" {
		t.Errorf("error field = %v, want interrupted", v)
	}
}

func TestWriteSettlement_NoErrorField(t *testing.T) {
	client, w, _ := newTestClient()

	client.WriteSettlement(automation.Settlement{
		SceneName: "finale",
		Action:    "fade",
		Reason:    automation.ReasonSceneStop,
	})

	p := w.written()[0]
	if _, ok := fieldValue(p, "error"); ok {
		t.Error("error field present for a clean settlement")
	}
	if v, _ := fieldValue(p, "started"); v != false {
		t.Errorf("started = %v, want false", v)
	}
}

func TestClose_StopsWrites(t *testing.T) {
	client, w, s := newTestClient()

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !s.closed {
		t.Error("server not closed")
	}
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1", w.flushes)
	}

	client.WriteSceneState(automation.StateChange{To: automation.SceneIdle})
	client.WritePoint("custom", nil, map[string]interface{}{"v": 1})
	client.Flush()

	if len(w.written()) != 0 {
		t.Errorf("points written after Close = %d", len(w.written()))
	}
	if w.flushes != 1 {
		t.Errorf("Flush after Close reached the writer")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestClose_Nil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
	if c.IsConnected() {
		t.Error("nil client reports connected")
	}
}

func TestHealthCheck(t *testing.T) {
	client, _, s := newTestClient()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}

	s.healthy = false
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck on unhealthy server = nil")
	}

	s.err = errors.New("refused")
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck on ping error = nil")
	}

	_ = client.Close()
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck after Close = %v, want ErrNotConnected", err)
	}
}

func TestWriteErrorsReachCallback(t *testing.T) {
	client, _, _ := newTestClient()

	got := make(chan error, 1)
	client.SetOnError(func(err error) { got <- err })

	errs := make(chan error, 1)
	go client.handleWriteErrors(errs)
	errs <- errors.New("batch rejected")
	close(errs)

	select {
	case err := <-got:
		if err.Error() != "batch rejected" {
			t.Errorf("callback error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("callback not invoked")
	}
}
