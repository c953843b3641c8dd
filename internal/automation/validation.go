package automation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxNameLength = 100

// GenerateID returns a new unique identifier for tasks and records.
func GenerateID() string {
	return uuid.New().String()
}

// validateSceneName checks a scene's display name.
func validateSceneName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidScene)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidScene, maxNameLength)
	}
	return nil
}
