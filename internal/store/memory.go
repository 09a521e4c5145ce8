package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBackend keeps the document in memory. It honours the same locking
// contract as FileBackend and can be told to fail writes.
type MemoryBackend struct {
	mu       sync.Mutex
	data     []byte
	writeErr error
	writes   int
}

// NewMemoryBackend creates a backend seeded with initial (nil for none).
func NewMemoryBackend(initial []byte) *MemoryBackend {
	return &MemoryBackend{data: clone(initial)}
}

// Location returns a fixed description.
func (m *MemoryBackend) Location() string {
	return "memory"
}

// Read returns a copy of the document.
func (m *MemoryBackend) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.data), nil
}

// Update runs fn under the backend mutex.
func (m *MemoryBackend) Update(ctx context.Context, fn func(current []byte) ([]byte, error)) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrLockUnavailable, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := fn(clone(m.data))
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	if m.writeErr != nil {
		return fmt.Errorf("%w: %w", ErrPersist, m.writeErr)
	}
	m.data = clone(next)
	m.writes++
	return nil
}

// FailWrites makes every following write fail with err. Pass nil to recover.
func (m *MemoryBackend) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Writes returns the number of successful writes.
func (m *MemoryBackend) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
