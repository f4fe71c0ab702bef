package props

import (
	"context"
	"sync"
)

// Memory is an in-process Table.
type Memory struct {
	mu     sync.RWMutex
	closed bool
	rows   map[string]map[string][]byte
}

var _ Table = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{rows: make(map[string]map[string][]byte)}
}

func (m *Memory) Set(ctx context.Context, eventID, key string, value any) error {
	return m.SetAll(ctx, eventID, map[string]any{key: value})
}

func (m *Memory) SetAll(ctx context.Context, eventID string, values map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	encoded := make(map[string][]byte, len(values))
	for k, v := range values {
		data, err := Encode(k, v)
		if err != nil {
			return err
		}
		encoded[k] = data
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	row, ok := m.rows[eventID]
	if !ok {
		row = make(map[string][]byte, len(encoded))
		m.rows[eventID] = row
	}
	for k, data := range encoded {
		row[k] = data
	}
	return nil
}

func (m *Memory) GetAll(ctx context.Context, eventID string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make(map[string]any, len(m.rows[eventID]))
	for k, data := range m.rows[eventID] {
		v, err := Decode(k, data)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, eventID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.rows, eventID)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
