package types

import (
	"encoding/json"
	"fmt"
)

// marshalTuple encodes a and b as a two-element JSON array.
func marshalTuple(a, b any) ([]byte, error) {
	return json.Marshal([2]any{a, b})
}

// unmarshalTuple decodes a two-element JSON array into a and b.
func unmarshalTuple(data []byte, a, b any) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("types: decode tuple: %w", err)
	}
	if err := json.Unmarshal(raw[0], a); err != nil {
		return fmt.Errorf("types: decode tuple[0]: %w", err)
	}
	if err := json.Unmarshal(raw[1], b); err != nil {
		return fmt.Errorf("types: decode tuple[1]: %w", err)
	}
	return nil
}
