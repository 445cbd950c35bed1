package utils

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Input size limits (in bytes)
const (
	MaxPromptSize   = 64 * 1024  // contextual prompt sent to the pipeline
	MaxEnvelopeSize = 512 * 1024 // generated-code envelope returned by the model
	MaxStateSize    = 256 * 1024 // serialized component state
)

// ValidatePrompt checks a user prompt for emptiness, size, and encoding
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("prompt must not be empty")
	}
	if len(prompt) > MaxPromptSize {
		return fmt.Errorf("prompt size %d bytes exceeds maximum %d bytes", len(prompt), MaxPromptSize)
	}
	if !utf8.ValidString(prompt) {
		return fmt.Errorf("prompt is not valid UTF-8")
	}
	return nil
}

// ValidateToolID checks a catalog service identifier ("google_calendar")
func ValidateToolID(toolID string) error {
	if toolID == "" {
		return fmt.Errorf("tool_id must not be empty")
	}
	if len(toolID) > 64 {
		return fmt.Errorf("tool_id too long")
	}
	for _, r := range toolID {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' && r != '-' {
			return fmt.Errorf("tool_id contains invalid character %q", r)
		}
	}
	return nil
}
