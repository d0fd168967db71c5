// Package lock serialises deduplication runs. The in-memory locker guards a
// single process; the Redis locker guards every process sharing one database.
package lock

import (
	"context"
	"sync"

	"outletdedup/pkg/platform/sentinel"
)

// InMemory is a non-blocking process-local run lock.
type InMemory struct {
	mu sync.Mutex
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

// Acquire takes the lock or fails immediately with sentinel.ErrConflict.
func (l *InMemory) Acquire(_ context.Context) (func(context.Context) error, error) {
	if !l.mu.TryLock() {
		return nil, sentinel.ErrConflict
	}
	var once sync.Once
	return func(context.Context) error {
		once.Do(l.mu.Unlock)
		return nil
	}, nil
}
