package storage

import (
	"context"
	"fmt"
	"sync"
)

// Memory keeps collections in process memory. With a positive quota it
// behaves like browser local storage and refuses writes that would push the
// total stored size past the limit.
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	quota  int
	closed bool
}

// NewMemory returns an empty in-memory backend. quota <= 0 disables the limit.
func NewMemory(quota int) *Memory {
	return &Memory{data: make(map[string][]byte), quota: quota}
}

// Get returns a copy of the value stored under key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Put stores a copy of data under key.
func (m *Memory) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.quota > 0 {
		used := len(key) + len(data)
		for k, v := range m.data {
			if k != key {
				used += len(k) + len(v)
			}
		}
		if used > m.quota {
			return fmt.Errorf("%w: %d bytes over a %d byte limit", ErrQuotaExceeded, used-m.quota, m.quota)
		}
	}
	m.data[key] = append([]byte(nil), data...)
	return nil
}

// Close releases the stored data.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}
