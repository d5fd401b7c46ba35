package tokenstore

import "sync"

// Memory is a Durable backed by a map. Sharing one Memory between two Stores
// simulates a restart.
type Memory struct {
	mu    sync.Mutex
	items map[string]string
}

var _ Durable = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{items: map[string]string{}}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
