package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	stream    Stream
	expiresAt time.Time
}

// Memory is an in-process cache for tests and DB-less runs.
type Memory struct {
	entries map[string]memoryEntry
	mu      sync.RWMutex
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (*Stream, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || !m.now().Before(entry.expiresAt) {
		return nil, nil
	}
	stream := entry.stream
	return &stream, nil
}

func (m *Memory) Set(_ context.Context, key string, stream Stream, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{stream: stream, expiresAt: m.now().Add(ttl)}
	return nil
}

// Len counts entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Close() error {
	return nil
}
