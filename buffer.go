package popcorn

import (
	"context"
	"unsafe"
)

// deviceCopy pairs a Memory handle with the Device that owns it, so that
// sync operations have the concrete Device available through the copies
// map itself rather than needing a side-table keyed by DeviceID. This
// mirrors the Rust original's BufferDevice key, which carries the device
// handle directly.
type deviceCopy struct {
	dev Device
	mem Memory
}

// rawBuffer is the inner state guarded by a Buffer's Vault. Invariants
// (mirroring spec.md section 3):
//
//	(i)   latest is a key of copies
//	(ii)  every copies[d].mem was allocated on device d
//	(iii) every copy has the same logical length (size elements)
//	(iv)  after any successful sync future resolves, the target device
//	      appears in copies and (for write-through syncs) becomes latest
type rawBuffer[T any] struct {
	size   int
	copies map[DeviceID]deviceCopy
	latest DeviceID
}

// Buffer is a shared, reference-counted (by Go pointer) handle wrapping a
// Vault over a rawBuffer. It tracks per-device copies of a logical array
// and synchronizes them on demand under a single vault guard.
type Buffer[T any] struct {
	vault *Vault[rawBuffer[T]]
}

// LockedBuffer is the guard object obtained from Buffer.Lock/TryLock. It
// grants exclusive access to the underlying rawBuffer until Release is
// called, and may be carried across asynchronous boundaries.
type LockedBuffer[T any] struct {
	buf   *Buffer[T]
	guard *Guard[rawBuffer[T]]
}

func elementSize[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

func toBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*elementSize[T]())
}

func fromBytes[T any](b []byte) []T {
	if len(b) == 0 {
		return nil
	}
	sz := elementSize[T]()
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), len(b)/sz)
}

// NewBuffer allocates one copy of size elements on dev; dev becomes the
// latest device.
func NewBuffer[T any](dev Device, size int) (*Buffer[T], error) {
	mem, allocated := dev.Allocate(size, elementSize[T]())
	if _, err := allocated.Await(context.Background()); err != nil {
		return nil, WrapError(KindNative, "allocate buffer", err)
	}
	raw := rawBuffer[T]{
		size:   size,
		copies: map[DeviceID]deviceCopy{dev.ID(): {dev: dev, mem: mem}},
		latest: dev.ID(),
	}
	return &Buffer[T]{vault: NewVault(raw)}, nil
}

// FromVec allocates a buffer sized to len(vec) on dev and initializes it
// with vec's contents.
func FromVec[T any](dev Device, vec []T) (*Buffer[T], error) {
	buf, err := NewBuffer[T](dev, len(vec))
	if err != nil {
		return nil, err
	}
	locked, err := buf.TryLock()
	if err != nil {
		return nil, err
	}
	if _, err := locked.SyncFromVec(context.Background(), vec).Await(context.Background()); err != nil {
		return nil, err
	}
	locked.Release()
	return buf, nil
}

// FromVecAsync is the non-blocking counterpart to FromVec: it never calls
// Await, so it is safe to call from within a continuation already running
// on dev's own worker pool (unlike FromVec, which blocks on SyncFromVec and
// would deadlock a single-worker pool in that position).
func FromVecAsync[T any](dev Device, vec []T) *Future[*LockedBuffer[T]] {
	mem, allocated := dev.Allocate(len(vec), elementSize[T]())
	raw := rawBuffer[T]{
		size:   len(vec),
		copies: map[DeviceID]deviceCopy{dev.ID(): {dev: dev, mem: mem}},
		latest: dev.ID(),
	}
	buf := &Buffer[T]{vault: NewVault(raw)}

	return Bind(allocated, dev, func(_ Memory, err error) (*Future[*LockedBuffer[T]], error) {
		if err != nil {
			return nil, WrapError(KindNative, "allocate buffer", err)
		}
		locked, err := buf.TryLock()
		if err != nil {
			return nil, err
		}
		return locked.SyncFromVec(context.Background(), vec), nil
	})
}

// Lock returns a Future that resolves with a LockedBuffer once the
// underlying vault becomes free.
func (b *Buffer[T]) Lock() *Future[*LockedBuffer[T]] {
	return Then(b.vault.Lock(), inlineScheduler{}, func(g *Guard[rawBuffer[T]], err error) (*LockedBuffer[T], error) {
		if err != nil {
			return nil, err
		}
		return &LockedBuffer[T]{buf: b, guard: g}, nil
	})
}

// TryLock attempts a non-blocking lock acquisition.
func (b *Buffer[T]) TryLock() (*LockedBuffer[T], error) {
	g, err := b.vault.TryLock()
	if err != nil {
		return nil, err
	}
	return &LockedBuffer[T]{buf: b, guard: g}, nil
}

// inlineScheduler runs thunks synchronously on the calling goroutine. It is
// used for Future plumbing (like Buffer.Lock's wrapping of vault.Lock) that
// has nothing to do with a device's worker pool and should not pay for one.
type inlineScheduler struct{}

func (inlineScheduler) Spawn(f func()) { f() }

// Release drops the vault guard, permitting another waiter (or TryLock
// caller) to proceed.
func (l *LockedBuffer[T]) Release() {
	l.guard.Release()
}

// Size returns the logical element count.
func (l *LockedBuffer[T]) Size() int {
	return l.guard.Value().size
}

// LatestDevice returns the ID of the device currently holding the
// authoritative copy.
func (l *LockedBuffer[T]) LatestDevice() DeviceID {
	return l.guard.Value().latest
}

// NativeMemory returns a read-only view of dev's copy, failing with
// KindInvalidDevice if no such copy exists.
func (l *LockedBuffer[T]) NativeMemory(dev Device) (Memory, error) {
	raw := l.guard.Value()
	dc, ok := raw.copies[dev.ID()]
	if !ok {
		return nil, ErrInvalidDevice
	}
	return dc.mem, nil
}

// NativeMemoryMut returns a mutable view of dev's copy, failing with
// KindInvalidDevice if no such copy exists. In Go there is no separate
// mutable-reference type; this is provided alongside NativeMemory purely
// to preserve the read/write API parity spec.md section 4.6 calls for.
func (l *LockedBuffer[T]) NativeMemoryMut(dev Device) (Memory, error) {
	return l.NativeMemory(dev)
}

// Sync ensures target is present in copies, materializing a fresh copy from
// the latest device if needed via a host-staged copy-out/copy-in, and sets
// latest to target (write-through). If target already holds the
// authoritative copy, the returned Future resolves immediately without
// allocating or copying (sync idempotence).
//
// Every step below is chained with Bind/Then rather than Await: this
// function itself commonly runs as a continuation dispatched onto a
// device's own worker pool (e.g. from inside a kernel), and blocking that
// worker on further work queued against the same pool would deadlock any
// pool with no spare worker to pick the dependent thunk up.
func (l *LockedBuffer[T]) Sync(ctx context.Context, target Device) *Future[*LockedBuffer[T]] {
	raw := l.guard.Value()
	if raw.latest == target.ID() {
		return Resolved(l)
	}

	source := raw.copies[raw.latest]

	return Bind(source.dev.CopyToHost(source.mem), target, func(hc HostCopy, err error) (*Future[*LockedBuffer[T]], error) {
		if err != nil {
			return nil, WrapError(KindNative, "sync copy-out", err)
		}
		// retain the source copy (possibly moved) so a later sync back to
		// it does not need to re-copy.
		raw.copies[source.dev.ID()] = deviceCopy{dev: source.dev, mem: hc.Mem}

		if existing, hadTarget := raw.copies[target.ID()]; hadTarget {
			return syncCopyIn(l, raw, target, existing.mem, hc.Data), nil
		}

		targetMem, allocFuture := target.Allocate(raw.size, elementSize[T]())
		return Bind(allocFuture, target, func(_ Memory, aerr error) (*Future[*LockedBuffer[T]], error) {
			if aerr != nil {
				return nil, WrapError(KindNative, "sync allocate target", aerr)
			}
			return syncCopyIn(l, raw, target, targetMem, hc.Data), nil
		}), nil
	})
}

// syncCopyIn performs the final copy-in stage of Sync once a target memory
// handle (existing or freshly allocated) is known.
func syncCopyIn[T any](l *LockedBuffer[T], raw *rawBuffer[T], target Device, targetMem Memory, data []byte) *Future[*LockedBuffer[T]] {
	return Then(target.CopyFromHost(targetMem, data), target, func(in Memory, cerr error) (*LockedBuffer[T], error) {
		if cerr != nil {
			return nil, WrapError(KindNative, "sync copy-in", cerr)
		}
		raw.copies[target.ID()] = deviceCopy{dev: target, mem: in}
		raw.latest = target.ID()
		return l, nil
	})
}

// SyncFromVec overwrites the authoritative copy on the latest device from
// the host vector vec.
func (l *LockedBuffer[T]) SyncFromVec(ctx context.Context, vec []T) *Future[*LockedBuffer[T]] {
	raw := l.guard.Value()
	dc := raw.copies[raw.latest]

	return Then(dc.dev.CopyFromHost(dc.mem, toBytes(vec)), inlineScheduler{}, func(mem Memory, err error) (*LockedBuffer[T], error) {
		if err != nil {
			return nil, WrapError(KindNative, "sync_from_vec", err)
		}
		raw.copies[dc.dev.ID()] = deviceCopy{dev: dc.dev, mem: mem}
		return l, nil
	})
}

// SyncToVec reads the authoritative copy on the latest device into a fresh
// host vector; the copy is reinserted under the same device key.
func (l *LockedBuffer[T]) SyncToVec(ctx context.Context) *Future[[]T] {
	raw := l.guard.Value()
	dc := raw.copies[raw.latest]

	return Then(dc.dev.CopyToHost(dc.mem), inlineScheduler{}, func(hc HostCopy, err error) ([]T, error) {
		if err != nil {
			return nil, WrapError(KindNative, "sync_to_vec", err)
		}
		raw.copies[dc.dev.ID()] = deviceCopy{dev: dc.dev, mem: hc.Mem}
		out := make([]T, len(hc.Data)/elementSize[T]())
		copy(out, fromBytes[T](hc.Data))
		return out, nil
	})
}
