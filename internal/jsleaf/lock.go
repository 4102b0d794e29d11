package jsleaf

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/bte/internal/goroutineid"
)

// reentrantLock is a mutex that the holding goroutine may acquire again. It
// serializes access to the runtime while still allowing a script to call
// into Go code that ticks another tree with script leaves.
type reentrantLock struct {
	mu    sync.Mutex
	owner atomic.Int64
	depth int // guarded by ownership
}

func (l *reentrantLock) Lock() {
	id := goroutineid.Get()
	if id != 0 && l.owner.Load() == id {
		l.depth++
		return
	}
	l.mu.Lock()
	l.owner.Store(id)
	l.depth = 1
}

func (l *reentrantLock) Unlock() {
	l.depth--
	if l.depth > 0 {
		return
	}
	if l.depth < 0 {
		panic("jsleaf: unlock of unlocked lock")
	}
	l.owner.Store(0)
	l.mu.Unlock()
}
