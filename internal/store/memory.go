package store

import (
	"context"
	"sync"
)

// Memory is a volatile Store, used when persistence is not wanted and in tests.
// FailLoad and FailSave make every Load or Save return the given error.
type Memory struct {
	mu       sync.Mutex
	data     []byte
	saves    int
	FailLoad error
	FailSave error
}

func NewMemory() *Memory {
	return &Memory{}
}

// NewMemoryWith returns a Memory store that already holds data.
func NewMemoryWith(data []byte) *Memory {
	return &Memory{data: append([]byte(nil), data...)}
}

func (m *Memory) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailLoad != nil {
		return nil, m.FailLoad
	}
	if m.data == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), m.data...), nil
}

func (m *Memory) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave != nil {
		return m.FailSave
	}
	m.data = append([]byte(nil), data...)
	m.saves++
	return nil
}

// Saves counts successful writes.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) Close() error { return nil }
