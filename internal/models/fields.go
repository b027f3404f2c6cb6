package models

import (
	"encoding/json"
	"fmt"
)

// ToFields flattens a model into the field map sent to the remote ledger
func ToFields(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	return fields, nil
}

// FromFields decodes a remote field map into the model pointed to by v
func FromFields(fields map[string]any, v any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode fields: %w", err)
	}
	return nil
}
