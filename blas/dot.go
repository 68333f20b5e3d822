package blas

import (
	"context"

	"github.com/joeycumines/go-popcorn"
	"github.com/joeycumines/go-popcorn/cpu"
)

// Dotter is the per-element-type dot-product primitive the kernel rides
// on. It stands in for a BLAS binding (cblas_sdot and friends); no Go BLAS
// module exists anywhere in this repository's reference corpus, so
// Float32Dotter below is a plain loop rather than a cgo call.
type Dotter[T any] interface {
	Dot(a, b []T) T
}

// Float32Dotter is the reference Dotter for float32, the element type the
// original implementation binds to cblas_sdot.
type Float32Dotter struct{}

// Dot implements Dotter.
func (Float32Dotter) Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Result is the output of BcastDot: a freshly allocated, locked shape
// buffer and data buffer holding the broadcasted dot product.
type Result[T any] struct {
	ShapeC *popcorn.LockedBuffer[uint64]
	C      *popcorn.LockedBuffer[T]
}

// IntoResult is the output of BcastDotInto: all six locked buffers that
// were passed in (inputs, then preallocated outputs), returned in call
// order once the computation has been written into the outputs.
type IntoResult[T any] struct {
	ShapeA *popcorn.LockedBuffer[uint64]
	A      *popcorn.LockedBuffer[T]
	ShapeB *popcorn.LockedBuffer[uint64]
	B      *popcorn.LockedBuffer[T]
	ShapeC *popcorn.LockedBuffer[uint64]
	C      *popcorn.LockedBuffer[T]
}

// compute performs the shared broadcast + dot arithmetic described by
// spec section 4.7: broadcast the leading dims, then for every aligned
// pair of trailing vectors accumulate one output element via dotter.
func compute[T any](dotter Dotter[T], shapeA []uint64, a []T, shapeB []uint64, b []T) (shapeC []uint64, c []T, err error) {
	bshape, err := computeBroadcast(shapeA, shapeB)
	if err != nil {
		return nil, nil, err
	}

	k := bshape.trailing
	iter := newBroadcastIter(shapeA, shapeB, bshape)

	c = make([]T, bshape.size())
	for i := 0; ; i++ {
		rowA, rowB, ok := iter.Next()
		if !ok {
			break
		}
		c[i] = dotter.Dot(a[rowA*k:rowA*k+k], b[rowB*k:rowB*k+k])
	}

	shapeC = make([]uint64, len(bshape.leading))
	for i, d := range bshape.leading {
		shapeC[i] = uint64(d)
	}

	return shapeC, c, nil
}

// syncAndRead syncs a locked buffer to dev (a no-op if it is already the
// latest device) and reads its contents out as a host slice. It chains via
// Bind rather than Await: BcastDot/BcastDotInto call this from within a
// continuation already running on dev's own pool, and blocking that worker
// on further dev-bound work would deadlock a single-worker pool.
func syncAndRead[T any](ctx context.Context, dev *cpu.Device, l *popcorn.LockedBuffer[T]) *popcorn.Future[[]T] {
	return popcorn.Bind(l.Sync(ctx, dev), dev, func(synced *popcorn.LockedBuffer[T], err error) (*popcorn.Future[[]T], error) {
		if err != nil {
			return nil, err
		}
		return synced.SyncToVec(ctx), nil
	})
}

// kernelInputs carries the four host-side vectors a kernel dispatch needs
// once every input buffer has been synced to the compute device and read
// back out.
type kernelInputs[T any] struct {
	shapeA []uint64
	a      []T
	shapeB []uint64
	b      []T
}

// readKernelInputs chains the four syncAndRead reads one after another so
// the kernel dispatch never blocks the pool it runs on.
func readKernelInputs[T any](ctx context.Context, dev *cpu.Device, shapeA *popcorn.LockedBuffer[uint64], a *popcorn.LockedBuffer[T], shapeB *popcorn.LockedBuffer[uint64], b *popcorn.LockedBuffer[T]) *popcorn.Future[kernelInputs[T]] {
	return popcorn.Bind(syncAndRead(ctx, dev, shapeA), dev, func(shapeAVals []uint64, err error) (*popcorn.Future[kernelInputs[T]], error) {
		if err != nil {
			return nil, err
		}
		return popcorn.Bind(syncAndRead(ctx, dev, a), dev, func(aVals []T, err error) (*popcorn.Future[kernelInputs[T]], error) {
			if err != nil {
				return nil, err
			}
			return popcorn.Bind(syncAndRead(ctx, dev, shapeB), dev, func(shapeBVals []uint64, err error) (*popcorn.Future[kernelInputs[T]], error) {
				if err != nil {
					return nil, err
				}
				return popcorn.Then(syncAndRead(ctx, dev, b), dev, func(bVals []T, err error) (kernelInputs[T], error) {
					if err != nil {
						return kernelInputs[T]{}, err
					}
					return kernelInputs[T]{shapeA: shapeAVals, a: aVals, shapeB: shapeBVals, b: bVals}, nil
				}), nil
			}), nil
		}), nil
	})
}

// BcastDot implements the allocating form of the reference kernel: inputs
// are already-locked shape/data buffer pairs for A and B; outputs are
// freshly allocated, locked buffers on dev.
func BcastDot[T any](ctx context.Context, dev *cpu.Device, dotter Dotter[T], shapeA *popcorn.LockedBuffer[uint64], a *popcorn.LockedBuffer[T], shapeB *popcorn.LockedBuffer[uint64], b *popcorn.LockedBuffer[T]) *popcorn.Future[Result[T]] {
	return popcorn.Bind(readKernelInputs(ctx, dev, shapeA, a, shapeB, b), dev, func(in kernelInputs[T], err error) (*popcorn.Future[Result[T]], error) {
		if err != nil {
			return nil, err
		}
		return computeAndAllocate(dev, dotter, in), nil
	})
}

// computeAndAllocate runs the pure broadcast+dot arithmetic and allocates
// the two output buffers via FromVecAsync, never blocking the worker it
// runs on.
func computeAndAllocate[T any](dev *cpu.Device, dotter Dotter[T], in kernelInputs[T]) (result *popcorn.Future[Result[T]]) {
	defer func() {
		if r := recover(); r != nil {
			result = popcorn.Failed[Result[T]](popcorn.NewError(popcorn.KindPanic, "panic in bcast_dot"))
		}
	}()

	shapeCVals, cVals, err := compute(dotter, in.shapeA, in.a, in.shapeB, in.b)
	if err != nil {
		return popcorn.Failed[Result[T]](err)
	}

	return popcorn.Bind(popcorn.FromVecAsync(dev, shapeCVals), dev, func(lockedShapeC *popcorn.LockedBuffer[uint64], err error) (*popcorn.Future[Result[T]], error) {
		if err != nil {
			return nil, popcorn.WrapError(popcorn.KindNative, "allocate shape_c", err)
		}
		return popcorn.Then(popcorn.FromVecAsync(dev, cVals), dev, func(lockedC *popcorn.LockedBuffer[T], err error) (Result[T], error) {
			if err != nil {
				return Result[T]{}, popcorn.WrapError(popcorn.KindNative, "allocate c", err)
			}
			return Result[T]{ShapeC: lockedShapeC, C: lockedC}, nil
		}), nil
	})
}

// BcastDotInto implements the preallocated-output form: shapeC and c are
// already-locked, already-sized buffers (on any device) that this call
// overwrites via sync_from_vec rather than allocating fresh ones. All six
// locked buffers are returned in call order.
func BcastDotInto[T any](ctx context.Context, dev *cpu.Device, dotter Dotter[T], shapeA *popcorn.LockedBuffer[uint64], a *popcorn.LockedBuffer[T], shapeB *popcorn.LockedBuffer[uint64], b *popcorn.LockedBuffer[T], shapeC *popcorn.LockedBuffer[uint64], c *popcorn.LockedBuffer[T]) *popcorn.Future[IntoResult[T]] {
	return popcorn.Bind(readKernelInputs(ctx, dev, shapeA, a, shapeB, b), dev, func(in kernelInputs[T], err error) (*popcorn.Future[IntoResult[T]], error) {
		if err != nil {
			return nil, err
		}
		return computeInto(ctx, dev, dotter, in, shapeA, a, shapeB, b, shapeC, c), nil
	})
}

// computeInto mirrors computeAndAllocate but writes the result into
// preallocated buffers via SyncFromVec instead of allocating fresh ones.
func computeInto[T any](ctx context.Context, dev *cpu.Device, dotter Dotter[T], in kernelInputs[T], shapeA *popcorn.LockedBuffer[uint64], a *popcorn.LockedBuffer[T], shapeB *popcorn.LockedBuffer[uint64], b *popcorn.LockedBuffer[T], shapeC *popcorn.LockedBuffer[uint64], c *popcorn.LockedBuffer[T]) (result *popcorn.Future[IntoResult[T]]) {
	defer func() {
		if r := recover(); r != nil {
			result = popcorn.Failed[IntoResult[T]](popcorn.NewError(popcorn.KindPanic, "panic in bcast_dot_into"))
		}
	}()

	shapeCVals, cVals, err := compute(dotter, in.shapeA, in.a, in.shapeB, in.b)
	if err != nil {
		return popcorn.Failed[IntoResult[T]](err)
	}

	if len(shapeCVals) != shapeC.Size() || len(cVals) != c.Size() {
		return popcorn.Failed[IntoResult[T]](popcorn.NewError(popcorn.KindInvalidRawBuffer, "preallocated output buffer has the wrong size"))
	}

	return popcorn.Bind(shapeC.SyncFromVec(ctx, shapeCVals), dev, func(_ *popcorn.LockedBuffer[uint64], err error) (*popcorn.Future[IntoResult[T]], error) {
		if err != nil {
			return nil, err
		}
		return popcorn.Then(c.SyncFromVec(ctx, cVals), dev, func(_ *popcorn.LockedBuffer[T], err error) (IntoResult[T], error) {
			if err != nil {
				return IntoResult[T]{}, err
			}
			return IntoResult[T]{
				ShapeA: shapeA, A: a,
				ShapeB: shapeB, B: b,
				ShapeC: shapeC, C: c,
			}, nil
		}), nil
	})
}
