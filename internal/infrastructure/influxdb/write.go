package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/showctl/internal/automation"
)

// Measurement names written by the client.
const (
	MeasurementSceneState = "scene_state"
	MeasurementSettlement = "action_settlement"
)

// WriteSceneState records a scene state transition.
//
// The state is a tag so Grafana can render per-state bands; the numeric
// "active" field is 1 for Idle, Preparing, Playing and Interrupting.
func (c *Client) WriteSceneState(change automation.StateChange) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(sceneStatePoint(change))
}

// WriteSettlement records one settled action with its duration.
func (c *Client) WriteSettlement(s automation.Settlement) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(settlementPoint(s))
}

// WritePoint writes a custom point timestamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}

func sceneStatePoint(change automation.StateChange) *write.Point {
	active := 0
	if change.To.Active() {
		active = 1
	}
	at := change.At
	if at.IsZero() {
		at = time.Now()
	}
	return write.NewPoint(
		MeasurementSceneState,
		map[string]string{
			"scene": change.SceneName,
			"state": string(change.To),
			"from":  string(change.From),
		},
		map[string]interface{}{
			"scene_id": change.SceneID,
			"active":   active,
		},
		at,
	)
}

func settlementPoint(s automation.Settlement) *write.Point {
	fields := map[string]interface{}{
		"duration_ms": s.DurationMS,
		"started":     !s.StartedAt.IsZero(),
	}
	if s.Error != "" {
		fields["error"] = s.Error
	}
	at := s.SettledAt
	if at.IsZero() {
		at = time.Now()
	}
	return write.NewPoint(
		MeasurementSettlement,
		map[string]string{
			"scene":  s.SceneName,
			"action": s.Action,
			"reason": string(s.Reason),
		},
		fields,
		at,
	)
}
