// Package popcorn is a small multi-device compute substrate: it schedules
// non-blocking operations across heterogeneous devices while tracking which
// device holds the authoritative bytes for any given logical buffer.
//
// Three pieces compose to form the asynchronous device-buffer substrate:
//
//   - [Future], a single-assignment completable value used as the
//     cooperative scheduling primitive for every suspension point in the
//     library (vault acquisition, device sync, kernel completion).
//   - [Buffer], a logical array that may have copies living on more than
//     one device at once, synchronized on demand.
//   - [Vault], a future-driven mutex whose guard can be carried across a
//     chain of asynchronous steps rather than being tied to a lexical
//     scope.
//
// Concrete devices live in sub-packages; see package cpu for the reference
// CPU backend, package blas for a representative compute kernel riding on
// top of the core, and package butter for the interface boundary a
// downstream dataflow-graph layer would consume.
package popcorn
