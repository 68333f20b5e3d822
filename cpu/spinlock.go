package cpu

import (
	"runtime"
	"sync/atomic"
)

// spinlock is a short-critical-section mutual exclusion primitive backed by
// a CAS loop rather than a blocking sync.Mutex. It exists for event.go's
// completion-flag guard, which is held only long enough to flip a bool and
// read/append a short callback slice: never across a blocking call.
type spinlock struct {
	state atomic.Bool
}

func (s *spinlock) Lock() {
	for !s.state.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (s *spinlock) Unlock() {
	s.state.Store(false)
}
