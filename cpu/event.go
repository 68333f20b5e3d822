package cpu

import (
	"sync/atomic"

	"github.com/joeycumines/go-popcorn"
)

var eventIDs atomic.Uint64

// Event is the pool-native completion primitive: a single-assignment value
// guarded by a spinlock rather than popcorn.Future's sync.Mutex, matching
// the original CPU backend's spin-locked EventInner. The host-copy
// suspension points in this package (CopyFromHost, CopyToHost) are built by
// wrapping an Event and handing the caller a *popcorn.Future instead, so
// that popcorn's public API never depends on this package's internals.
type Event[T any] struct {
	id        uint64
	pool      *Pool
	lock      spinlock
	completed bool
	val       T
	err       error
	callbacks []func(T, error)
}

// newEvent allocates a pending Event bound to pool.
func newEvent[T any](pool *Pool) *Event[T] {
	return &Event[T]{id: eventIDs.Add(1), pool: pool}
}

// ID returns this event's monotonically increasing identity, unique within
// the process.
func (e *Event[T]) ID() uint64 {
	return e.id
}

// Complete assigns the event's result. Only the first call has any effect;
// it reports whether this call was the one that completed the event.
func (e *Event[T]) Complete(val T, err error) bool {
	e.lock.Lock()
	if e.completed {
		e.lock.Unlock()
		return false
	}
	e.completed = true
	e.val = val
	e.err = err
	callbacks := e.callbacks
	e.callbacks = nil
	e.lock.Unlock()

	for _, cb := range callbacks {
		e.pool.Spawn(func() { cb(val, err) })
	}
	return true
}

// Result returns the current snapshot without blocking.
func (e *Event[T]) Result() (val T, err error, completed bool) {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.val, e.err, e.completed
}

// Callback registers fn to run on the owning pool once the event completes,
// immediately spawning it if the event is already done.
func (e *Event[T]) Callback(fn func(T, error)) {
	e.lock.Lock()
	if e.completed {
		val, err := e.val, e.err
		e.lock.Unlock()
		e.pool.Spawn(func() { fn(val, err) })
		return
	}
	e.callbacks = append(e.callbacks, fn)
	e.lock.Unlock()
}

// Then chains a new event whose value is produced by fn, run on the pool
// once e completes. This is the Go shape of the original CpuEvent's
// event_callback: a device-bound event producing a further device-bound
// event.
func Then[T, R any](e *Event[T], pool *Pool, fn func(T, error) (R, error)) *Event[R] {
	next := newEvent[R](pool)
	e.Callback(func(val T, err error) {
		rv, rerr := fn(val, err)
		next.Complete(rv, rerr)
	})
	return next
}

// Future adapts e into a *popcorn.Future[T], the currency the popcorn
// package's Device interface trades in.
func (e *Event[T]) Future() *popcorn.Future[T] {
	f, resolve := popcorn.NewFuture[T]()
	e.Callback(func(val T, err error) {
		resolve(val, err)
	})
	return f
}
