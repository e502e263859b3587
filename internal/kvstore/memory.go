package kvstore

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Store. Expired entries are invisible to readers
// and are dropped on the next write that touches them or on Sweep.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || expired(m.now(), e.expiresAt) {
		return nil, ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v := make([]byte, len(value))
	copy(v, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: v, expiresAt: expiryFor(m.now(), ttl)}
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (m *Memory) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

// Sweep drops expired entries and returns how many were removed.
func (m *Memory) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if expired(now, e.expiresAt) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

var (
	_ Store         = (*Memory)(nil)
	_ PrefixDeleter = (*Memory)(nil)
)
