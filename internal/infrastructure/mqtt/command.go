package mqtt

import (
	"time"

	"github.com/google/uuid"
)

// Command is the envelope for every command sent to a device bridge.
//
// Bridges echo ID back in their state reports so the core can match a
// report to the command that caused it.
type Command struct {
	ID         string         `json:"id"`
	Device     string         `json:"device"`
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Source     string         `json:"source,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NewCommand builds a command envelope with a fresh ID.
func NewCommand(device, command string, params map[string]any) Command {
	return Command{
		ID:         uuid.New().String(),
		Device:     device,
		Command:    command,
		Parameters: params,
		Source:     "showctl",
		Timestamp:  time.Now().UTC(),
	}
}
