package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/microact/internal/ir"
)

// marshalAction converts a wire action to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalAction(action ir.Object) (string, error) {
	if action == nil {
		action = ir.Object{}
	}
	data, err := ir.MarshalCanonical(action)
	if err != nil {
		return "", fmt.Errorf("marshal action: %w", err)
	}
	return string(data), nil
}

// unmarshalAction parses canonical JSON TEXT to a wire action.
// ir.Object.UnmarshalJSON keeps integers as int64, so values > 2^53 survive.
func unmarshalAction(data string) (ir.Object, error) {
	if data == "" || data == "{}" {
		return ir.Object{}, nil
	}
	var obj ir.Object
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal action: %w", err)
	}
	return obj, nil
}
