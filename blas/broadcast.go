package blas

import "github.com/joeycumines/go-popcorn"

// broadcastShape is the result of reconciling two input shapes under
// NumPy-style broadcasting of their leading dimensions, leaving the
// trailing (contraction) dimension untouched: it must already match
// between the two inputs.
type broadcastShape struct {
	leading  []int
	trailing int
}

// size returns the product of the leading dims (the element count of the
// broadcast result once the trailing dim is dropped).
func (s broadcastShape) size() int {
	n := 1
	for _, d := range s.leading {
		n *= d
	}
	return n
}

// computeBroadcast aligns shapeA and shapeB's trailing dims (which must be
// equal) and NumPy-broadcasts their leading dims: right-align, and for each
// position either both dims agree or one of them is 1 (replicated).
// Mismatched non-unit dims fail with popcorn.ErrInvalidBroadcast.
func computeBroadcast(shapeA, shapeB []uint64) (broadcastShape, error) {
	if len(shapeA) == 0 || len(shapeB) == 0 {
		return broadcastShape{}, popcorn.NewError(popcorn.KindInvalidBroadcast, "shape must have at least one dimension")
	}

	trailingA := shapeA[len(shapeA)-1]
	trailingB := shapeB[len(shapeB)-1]
	if trailingA != trailingB {
		return broadcastShape{}, popcorn.NewError(popcorn.KindInvalidBroadcast, "trailing (contraction) dimensions differ")
	}

	leadingA := shapeA[:len(shapeA)-1]
	leadingB := shapeB[:len(shapeB)-1]

	n := len(leadingA)
	if len(leadingB) > n {
		n = len(leadingB)
	}

	result := make([]int, n)
	for i := 0; i < n; i++ {
		da := dimAt(leadingA, i, n)
		db := dimAt(leadingB, i, n)
		switch {
		case da == db:
			result[i] = int(da)
		case da == 1:
			result[i] = int(db)
		case db == 1:
			result[i] = int(da)
		default:
			return broadcastShape{}, popcorn.NewError(popcorn.KindInvalidBroadcast, "leading dimensions are not broadcast-compatible")
		}
	}

	return broadcastShape{leading: result, trailing: int(trailingA)}, nil
}

// dimAt returns the size of dim i (0-indexed from the left) of a shape
// right-aligned into a window of width n, treating any position to the
// left of the shape's own extent as an implicit leading dimension of 1
// (the standard NumPy broadcasting rule for mismatched ranks).
func dimAt(shape []uint64, i, n int) uint64 {
	pad := n - len(shape)
	if i < pad {
		return 1
	}
	return shape[i-pad]
}

// broadcastIter enumerates the row-major multi-index space of a
// broadcastShape's leading dims, yielding for each combination the flat
// row offsets (in units of the trailing dimension, i.e. vector index, not
// element index) into A's and B's underlying data.
type broadcastIter struct {
	shape       broadcastShape
	stridesA    []int
	stridesB    []int
	effectiveA  []uint64
	effectiveB  []uint64
	total       int
	next        int
}

func newBroadcastIter(shapeA, shapeB []uint64, shape broadcastShape) *broadcastIter {
	n := len(shape.leading)
	leadingA := shapeA[:len(shapeA)-1]
	leadingB := shapeB[:len(shapeB)-1]

	effA := make([]uint64, n)
	effB := make([]uint64, n)
	for i := 0; i < n; i++ {
		effA[i] = dimAt(leadingA, i, n)
		effB[i] = dimAt(leadingB, i, n)
	}

	return &broadcastIter{
		shape:      shape,
		stridesA:   rowMajorStrides(leadingA, n),
		stridesB:   rowMajorStrides(leadingB, n),
		effectiveA: effA,
		effectiveB: effB,
		total:      shape.size(),
	}
}

// rowMajorStrides returns, for each of the n right-aligned broadcast
// dimensions, the stride (in vectors) to apply to that dimension's own
// index within shape's real (unpadded) extent; padding dims (to the left
// of shape's own rank) always carry stride 0, since a broadcast index
// there is always 0.
func rowMajorStrides(shape []uint64, n int) []int {
	strides := make([]int, n)
	pad := n - len(shape)
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[pad+i] = acc
		acc *= int(shape[i])
	}
	return strides
}

// Next returns the next (rowA, rowB) pair of vector offsets, and false once
// exhausted.
func (it *broadcastIter) Next() (rowA, rowB int, ok bool) {
	if it.next >= it.total {
		return 0, 0, false
	}
	idx := unflatten(it.next, it.shape.leading)
	for i, d := range idx {
		if it.effectiveA[i] != 1 {
			rowA += d * it.stridesA[i]
		}
		if it.effectiveB[i] != 1 {
			rowB += d * it.stridesB[i]
		}
	}
	it.next++
	return rowA, rowB, true
}

// unflatten decomposes a flat row-major index into per-dimension indices.
func unflatten(flat int, shape []int) []int {
	idx := make([]int, len(shape))
	for i := len(shape) - 1; i >= 0; i-- {
		d := shape[i]
		if d == 0 {
			idx[i] = 0
			continue
		}
		idx[i] = flat % d
		flat /= d
	}
	return idx
}
