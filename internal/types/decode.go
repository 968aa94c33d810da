package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeTranscript accepts a transcript object or a one-item array holding
// one, the shape workflow hosts hand over.
func DecodeTranscript(b []byte) (Transcript, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var items []Transcript
		if err := json.Unmarshal(b, &items); err != nil {
			return Transcript{}, fmt.Errorf("decode transcript: %w", err)
		}
		if len(items) != 1 {
			return Transcript{}, fmt.Errorf("decode transcript: expected one item, got %d", len(items))
		}
		return items[0], nil
	}
	var tr Transcript
	if err := json.Unmarshal(b, &tr); err != nil {
		return Transcript{}, fmt.Errorf("decode transcript: %w", err)
	}
	return tr, nil
}

// DecodeBlockResults reads either a single block result (envelope object or
// bare array of shorts) or an array of block results. An array counts as a
// list of results when none of its objects look like a short.
func DecodeBlockResults(b []byte) ([]BlockResult, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '[' {
		var r BlockResult
		if err := json.Unmarshal(b, &r); err != nil {
			return nil, fmt.Errorf("decode block result: %w", err)
		}
		return []BlockResult{r}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("decode block results: %w", err)
	}
	for _, it := range items {
		var fields map[string]json.RawMessage
		if json.Unmarshal(it, &fields) != nil {
			continue
		}
		_, hasStart := fields["start"]
		_, hasShorts := fields["shorts"]
		if hasStart && !hasShorts {
			var r BlockResult
			if err := json.Unmarshal(b, &r); err != nil {
				return nil, fmt.Errorf("decode shorts: %w", err)
			}
			return []BlockResult{r}, nil
		}
	}
	out := make([]BlockResult, 0, len(items))
	for i, it := range items {
		var r BlockResult
		if err := json.Unmarshal(it, &r); err != nil {
			return nil, fmt.Errorf("decode block result %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}
