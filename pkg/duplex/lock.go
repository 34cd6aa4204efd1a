package duplex

import (
	"sync"
	"sync/atomic"

	"dominicbreuker/tlsduplex/pkg/ioerr"
)

// poisonMutex is a mutex that is poisoned when a panic unwinds while it is
// held. Acquiring a poisoned mutex fails with ioerr.ErrPoisoned.
//
// The usual pattern is
//
//	if err := m.acquire(); err != nil {
//		return err
//	}
//	defer m.release()
//
// release must be deferred directly so its recover sees the panic.
type poisonMutex struct {
	mu       sync.Mutex
	poisoned atomic.Bool
}

func (m *poisonMutex) acquire() error {
	m.mu.Lock()
	if m.poisoned.Load() {
		m.mu.Unlock()
		return ioerr.ErrPoisoned
	}
	return nil
}

// release unlocks m. On a panic it poisons m, unlocks and re-panics.
func (m *poisonMutex) release() {
	if r := recover(); r != nil {
		m.poisoned.Store(true)
		m.mu.Unlock()
		panic(r)
	}
	m.mu.Unlock()
}

// poisonOnPanic poisons and unlocks m on a panic and keeps m locked
// otherwise. It guards code that hands m to someone else to unlock.
func (m *poisonMutex) poisonOnPanic() {
	if r := recover(); r != nil {
		m.poisoned.Store(true)
		m.mu.Unlock()
		panic(r)
	}
}

// Lock and Unlock make m a sync.Locker without poison checks.
func (m *poisonMutex) Lock()   { m.mu.Lock() }
func (m *poisonMutex) Unlock() { m.mu.Unlock() }

func (m *poisonMutex) isPoisoned() bool {
	return m.poisoned.Load()
}
