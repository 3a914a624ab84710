// Package lock serializes work per key, e.g. concurrent fits of one ticker.
package lock

import (
	"context"
	"sync"
)

// Locker grants exclusive ownership of a key until unlock is called. Lock
// blocks until the key is free or ctx is done. unlock is safe to call more
// than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Memory is an in-process Locker. Keys are dropped once no caller holds or
// waits for them.
type Memory struct {
	mu   sync.Mutex
	keys map[string]*memEntry
}

type memEntry struct {
	sem  chan struct{}
	refs int
}

func NewMemory() *Memory {
	return &Memory{keys: make(map[string]*memEntry)}
}

func (m *Memory) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.keys[key]
	if !ok {
		e = &memEntry{sem: make(chan struct{}, 1)}
		m.keys[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			m.release(key, e)
		})
	}, nil
}

func (m *Memory) release(key string, e *memEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.keys, key)
	}
}

// size reports how many keys are tracked.
func (m *Memory) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}
