// Package props stores the free-form properties attached to events. Values
// must be JSON-encodable; they are returned as their JSON decoding, so
// numbers come back as float64.
package props

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrClosed is returned by a table after Close.
var ErrClosed = errors.New("property table closed")

// Table is a schemaless key/value side table keyed by event id.
type Table interface {
	Set(ctx context.Context, eventID, key string, value any) error
	// GetAll returns every property of eventID, or an empty map.
	GetAll(ctx context.Context, eventID string) (map[string]any, error)
	// Delete removes every property of eventID.
	Delete(ctx context.Context, eventID string) error
	Close() error
}

// Batcher is implemented by tables that can write a whole property set in
// one round trip.
type Batcher interface {
	SetAll(ctx context.Context, eventID string, values map[string]any) error
}

// SetAll writes values using the table's batch path when it has one.
func SetAll(ctx context.Context, t Table, eventID string, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	if b, ok := t.(Batcher); ok {
		return b.SetAll(ctx, eventID, values)
	}
	for k, v := range values {
		if err := t.Set(ctx, eventID, k, v); err != nil {
			return err
		}
	}
	return nil
}

// Encode returns the stored form of a property value.
func Encode(key string, value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding property %q: %w", key, err)
	}
	return data, nil
}

// Decode is the inverse of Encode.
func Decode(key string, data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decoding property %q: %w", key, err)
	}
	return v, nil
}
