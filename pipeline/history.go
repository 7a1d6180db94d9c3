package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParseHistory decodes a JSON array of conversation turns. Entries that are not
// objects are skipped and non-string role or content values keep their JSON text,
// so one odd turn never discards the rest. Empty input or null yields no turns.
func ParseHistory(raw []byte) ([]Turn, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("conversation history: %w", err)
	}

	turns := make([]Turn, 0, len(items))
	for _, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			continue
		}
		turns = append(turns, Turn{Role: fieldText(fields["role"]), Content: fieldText(fields["content"])})
	}

	return turns, nil
}

func fieldText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
