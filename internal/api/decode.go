package api

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// decode parses body into T. Riot payloads are inconsistent about key casing
// inside dynamic maps (queue names, season ids, loadout item ids), so every
// object key is lowercased before the typed decode. Struct fields match
// case-insensitively, which leaves map keys as the only place casing matters.
func decode[T any](body []byte) (*T, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	normalized, err := json.Marshal(lowerKeys(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to normalize response: %w", err)
	}

	var result T
	if err := json.Unmarshal(normalized, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

func lowerKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[strings.ToLower(k)] = lowerKeys(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = lowerKeys(t[i])
		}
		return t
	default:
		return v
	}
}
