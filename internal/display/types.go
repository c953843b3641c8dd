package display

import "time"

// Media identifies a playable file on the player host.
type Media struct {
	Path  string `json:"path" yaml:"path"`
	Title string `json:"title,omitempty" yaml:"title"`

	// StartMS starts playback part way through the file.
	StartMS int64 `json:"start_ms,omitempty" yaml:"start_ms"`
}

// Status is the player's playback status as reported by the bridge.
type Status string

// Player statuses.
const (
	StatusIdle    Status = "idle"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped"
	StatusEnded   Status = "ended"
)

// Report is a state report published by the media player bridge.
type Report struct {
	Status     Status    `json:"status"`
	Media      string    `json:"media,omitempty"`
	PositionMS int64     `json:"position_ms"`
	CommandID  string    `json:"command_id,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}

// finished reports whether playback of the current media is over.
func (r Report) finished() bool {
	return r.Status == StatusEnded || r.Status == StatusStopped
}
