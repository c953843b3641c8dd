// Package audit records operator actions (scene starts and stops, cue
// triggers, logins) in the audit_logs table.
package audit

import "time"

// Actions recorded by showctl.
const (
	ActionSceneStart  = "scene.start"
	ActionSceneStop   = "scene.stop"
	ActionCueTrigger  = "cue.trigger"
	ActionLogin       = "operator.login"
	ActionLoginFailed = "operator.login_failed"
)

// Entity types.
const (
	EntityScene    = "scene"
	EntityOperator = "operator"
)

// Sources.
const (
	SourceAPI      = "api"
	SourceSchedule = "schedule"
	SourceStartup  = "startup"
)

// Entry is a single audit trail record.
type Entry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	Since      time.Time
	Limit      int // default 50, max 200
	Offset     int
}

// ListResult is one page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}
