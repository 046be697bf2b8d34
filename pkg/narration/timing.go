package narration

import (
	"encoding/json"
	"fmt"
)

// FormatTiming renders alignment events as an indented JSON array.
// No events yields "[]".
func FormatTiming(timing []json.RawMessage) (string, error) {
	if len(timing) == 0 {
		return "[]", nil
	}
	out, err := json.MarshalIndent(timing, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode timing: %w", err)
	}
	return string(out), nil
}
