package storage

import (
	"context"
	"sync"
)

// MemoryStorage keeps values in process; used for single-instance
// development and tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	devices map[string]map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{devices: make(map[string]map[string]string)}
}

func (m *MemoryStorage) Get(_ context.Context, deviceID string, keys ...string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(keys))
	values := m.devices[deviceID]
	for _, key := range keys {
		if v, ok := values[key]; ok {
			out[key] = v
		}
	}
	return out, nil
}

func (m *MemoryStorage) Set(_ context.Context, deviceID string, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.devices[deviceID] == nil {
		m.devices[deviceID] = make(map[string]string, len(values))
	}
	for k, v := range values {
		m.devices[deviceID][k] = v
	}
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, deviceID string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	values := m.devices[deviceID]
	for _, key := range keys {
		delete(values, key)
	}
	if len(values) == 0 {
		delete(m.devices, deviceID)
	}
	return nil
}

// Len reports how many devices hold at least one value.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.devices)
}
