package popcorn

import "sync"

// Vault is a future-driven mutex whose guard has no borrow-scope lifetime
// tied to the lock holder: a Guard can be carried across a chain of
// asynchronous steps (sync-to-device, then compute, then sync-back) without
// blocking a goroutine for the duration.
//
// At most one Guard exists per Vault at any time. Cloning a Vault handle
// (copying the pointer) shares the same underlying lock; Vault is typically
// held by reference, exactly like the Rust original's Arc<Inner<T>>.
type Vault[T any] struct {
	mu      sync.Mutex
	locked  bool
	waiters []chan struct{} // FIFO; see DESIGN.md on wakeup fairness
	data    T
}

// NewVault wraps t in a new, unlocked Vault.
func NewVault[T any](t T) *Vault[T] {
	return &Vault[T]{data: t}
}

// Guard grants exclusive access to a Vault's contents until Release is
// called. Accessors obtained via Value must not be retained past Release.
type Guard[T any] struct {
	vault    *Vault[T]
	released bool
	mu       sync.Mutex
}

// Value returns a pointer to the guarded value. It is valid for read and
// write access for as long as the Guard has not been released.
func (g *Guard[T]) Value() *T {
	return &g.vault.data
}

// Release drops the guard: flips the vault's lock flag (or, if another
// goroutine is waiting, hands the lock directly to the head of the FIFO
// wait queue) and returns. Calling Release more than once is a no-op.
func (g *Guard[T]) Release() {
	g.mu.Lock()
	if g.released {
		g.mu.Unlock()
		return
	}
	g.released = true
	g.mu.Unlock()

	v := g.vault
	v.mu.Lock()
	if len(v.waiters) > 0 {
		next := v.waiters[0]
		v.waiters = v.waiters[1:]
		v.mu.Unlock()
		// Lock ownership transfers directly to next: v.locked stays true,
		// so no other TryLock/Lock can interleave between this release and
		// the waiter's wakeup.
		close(next)
		return
	}
	v.locked = false
	v.mu.Unlock()
}

// TryLock attempts a non-blocking acquisition, returning an *Error of Kind
// KindInvalidLock if the vault is already locked. This is the only path on
// which vault acquisition can fail; the future form (Lock) never fails, it
// only pends.
func (v *Vault[T]) TryLock() (*Guard[T], error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.locked {
		return nil, NewError(KindInvalidLock, "vault is already locked")
	}
	v.locked = true
	return &Guard[T]{vault: v}, nil
}

// Lock returns a Future that resolves with a Guard once the vault becomes
// free. If the vault is currently unlocked, the Future is already resolved
// by the time Lock returns.
func (v *Vault[T]) Lock() *Future[*Guard[T]] {
	f, resolve := NewFuture[*Guard[T]]()

	v.mu.Lock()
	if !v.locked {
		v.locked = true
		v.mu.Unlock()
		resolve(&Guard[T]{vault: v}, nil)
		return f
	}

	wake := make(chan struct{})
	v.waiters = append(v.waiters, wake)
	v.mu.Unlock()

	go func() {
		<-wake
		resolve(&Guard[T]{vault: v}, nil)
	}()

	return f
}
