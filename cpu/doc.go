// Package cpu is the reference CPU backend for popcorn: a fixed-size
// worker pool draining a lock-free queue, and a Device/Memory pair that
// treats host memory as device-local storage.
package cpu
