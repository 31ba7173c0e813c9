package filestore

import (
	"sync"
)

// locker centralizes the read/write locking of store operations. Every
// operation goes through read or write, never through the mutex directly,
// which keeps lock and unlock in one place and rules out relock patterns.
type locker struct {
	mu sync.RWMutex
}

// read runs fn under a shared lock. Multiple readers proceed concurrently.
func (l *locker) read(fn func() error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn()
}

// write runs fn under the exclusive lock.
func (l *locker) write(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn()
}
