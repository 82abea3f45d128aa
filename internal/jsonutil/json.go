// Package jsonutil provides the JSON encoding convention shared by
// every on-disk JSON file ai-barometer writes: two-space indentation
// and a guaranteed trailing newline so files end cleanly under POSIX
// tools and diff cleanly in source control.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalIndented encodes v with two-space indentation and a trailing
// newline.
func MarshalIndented(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding JSON: %w", err)
	}
	return buf.Bytes(), nil
}
