package popcorn

import (
	"context"
	"sync"
)

// Scheduler is anything capable of running a thunk asynchronously. It is the
// minimal seam Future needs to fan callbacks back onto a worker pool without
// this package depending on package cpu; *cpu.Pool implements it.
type Scheduler interface {
	Spawn(f func())
}

// Future is a single-assignment completable value: the cooperative
// scheduling primitive used at every suspension point in this module (vault
// acquisition, buffer sync, kernel completion). It plays the role the spec
// calls an "event": register-before-or-after completion both work, and a
// callback may itself produce a downstream Future (chaining via Then).
//
// The zero value is not usable; construct with NewFuture.
type Future[T any] struct {
	mu        sync.Mutex
	completed bool
	val       T
	err       error
	done      chan struct{}
	callbacks []func(T, error)
}

// NewFuture returns a pending Future along with the resolver function that
// completes it. Calling the resolver more than once is a no-op after the
// first call, mirroring the event contract's complete(result) -> bool
// (the returned bool reports whether this call was the one that completed
// it).
func NewFuture[T any]() (*Future[T], func(T, error) bool) {
	f := &Future[T]{done: make(chan struct{})}
	return f, f.resolve
}

// Resolved returns a Future that is already complete with val, nil.
func Resolved[T any](val T) *Future[T] {
	f, resolve := NewFuture[T]()
	resolve(val, nil)
	return f
}

// Failed returns a Future that is already complete with the zero value and
// err.
func Failed[T any](err error) *Future[T] {
	f, resolve := NewFuture[T]()
	var zero T
	resolve(zero, err)
	return f
}

func (f *Future[T]) resolve(val T, err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.val = val
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(val, err)
	}
	return true
}

// Done returns true if this Future has completed.
func (f *Future[T]) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// Result returns the current (value, error, completed) snapshot without
// blocking; completed is false before resolution, matching the event
// contract's "not completed" sentinel.
func (f *Future[T]) Result() (val T, err error, completed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.val, f.err, f.completed
}

// Await blocks until the Future completes or ctx is canceled, whichever
// comes first.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Callback registers f to run (on sched) when this Future completes: either
// immediately, if already completed, or queued for when the resolver
// returned by NewFuture is called.
// There are no ordering guarantees between distinct callbacks once they are
// enqueued onto sched.
func (f *Future[T]) Callback(sched Scheduler, fn func(T, error)) {
	f.mu.Lock()
	if f.completed {
		val, err := f.val, f.err
		f.mu.Unlock()
		sched.Spawn(func() { fn(val, err) })
		return
	}
	f.callbacks = append(f.callbacks, func(val T, err error) {
		sched.Spawn(func() { fn(val, err) })
	})
	f.mu.Unlock()
}

// Then is the fundamental "and_then" combinator: it registers fn and returns
// a new Future that resolves with fn's return value once fn finishes running
// on sched.
func Then[T, R any](f *Future[T], sched Scheduler, fn func(T, error) (R, error)) *Future[R] {
	next, resolve := NewFuture[R]()
	f.Callback(sched, func(val T, err error) {
		rv, rerr := fn(val, err)
		resolve(rv, rerr)
	})
	return next
}

// Bind is the monadic "and_then" combinator: fn itself produces a Future,
// and Bind adopts whatever that Future eventually resolves to. Unlike Then,
// which maps a value synchronously, Bind lets fn kick off further
// asynchronous work (another Sync, another device op) without the calling
// goroutine ever blocking on Await — the continuation is only ever resumed
// via a Callback dispatch. This is what multi-step device chains (buffer
// sync, kernel dispatch) are built from, mirroring the original
// implementation's and_then chains.
func Bind[T, R any](f *Future[T], sched Scheduler, fn func(T, error) (*Future[R], error)) *Future[R] {
	next, resolve := NewFuture[R]()
	f.Callback(sched, func(val T, err error) {
		inner, ferr := fn(val, err)
		if ferr != nil {
			var zero R
			resolve(zero, ferr)
			return
		}
		inner.Callback(sched, func(rv R, rerr error) {
			resolve(rv, rerr)
		})
	})
	return next
}

// Join waits for both futures (via their own scheduler-driven callbacks) and
// resolves once both have completed, carrying a's error if it has one and
// otherwise b's, regardless of which completed first.
func Join[A, B any](a *Future[A], b *Future[B], sched Scheduler) *Future[struct {
	A A
	B B
}] {
	type pair = struct {
		A A
		B B
	}
	next, resolve := NewFuture[pair]()

	var mu sync.Mutex
	var av A
	var bv B
	var aerr, berr error
	remaining := 2

	finish := func() {
		remaining--
		if remaining > 0 {
			return
		}
		err := aerr
		if err == nil {
			err = berr
		}
		resolve(pair{A: av, B: bv}, err)
	}

	a.Callback(sched, func(val A, err error) {
		mu.Lock()
		defer mu.Unlock()
		av, aerr = val, err
		finish()
	})
	b.Callback(sched, func(val B, err error) {
		mu.Lock()
		defer mu.Unlock()
		bv, berr = val, err
		finish()
	})

	return next
}
