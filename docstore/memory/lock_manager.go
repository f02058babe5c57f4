package memory

import "sync"

// OperationType defines whether an operation reads or mutates the store.
type OperationType int

const (
	// ReadOperation only reads data; multiple reads proceed concurrently.
	ReadOperation OperationType = iota

	// WriteOperation mutates data and runs exclusively.
	WriteOperation
)

// LockManager centralizes the coarse per-collection locking strategy so
// every operation takes the appropriate lock type in one place instead of
// sprinkling Lock/RLock pairs through the store.
type LockManager struct {
	mu sync.RWMutex
}

// NewLockManager returns a ready-to-use lock manager.
func NewLockManager() *LockManager {
	return &LockManager{}
}

// Execute runs fn under the lock matching opType. The lock is released via
// defer, so fn may panic without leaking the lock.
func (lm *LockManager) Execute(opType OperationType, fn func() error) error {
	switch opType {
	case ReadOperation:
		lm.mu.RLock()
		defer lm.mu.RUnlock()
	case WriteOperation:
		lm.mu.Lock()
		defer lm.mu.Unlock()
	}
	return fn()
}
