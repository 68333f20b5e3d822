// Package blas provides the reference broadcasted dot-product kernel: a
// NumPy-style leading-dimension broadcast over two shape/data buffer pairs,
// contracted along their shared trailing dimension.
package blas
