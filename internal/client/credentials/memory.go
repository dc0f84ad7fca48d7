package credentials

import (
	"context"
	"sync"
)

// MemoryBackend keeps the token for the life of the process. FailWrites
// simulates unavailable storage.
type MemoryBackend struct {
	mu         sync.Mutex
	token      string
	FailWrites error
}

func NewMemoryBackend(token string) *MemoryBackend {
	return &MemoryBackend{token: token}
}

func (m *MemoryBackend) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return "", ErrNoToken
	}
	return m.token, nil
}

func (m *MemoryBackend) Save(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.token = token
	return nil
}

func (m *MemoryBackend) Remove(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.token = ""
	return nil
}

// NewMemory returns a Store over a fresh MemoryBackend.
func NewMemory(token string) *Store {
	return New(NewMemoryBackend(token), nil)
}
