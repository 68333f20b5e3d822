package popcorn

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured-logging seam of this module; package cpu is its
// only consumer (cpu.Pool logs recovered worker panics). It is a concrete alias rather than a
// hand-rolled interface because logiface.Logger already generalizes over
// event-backend implementations via its type parameter; stumpy.Event is the
// one backend wired into this repository.
type Logger = *logiface.Logger[*stumpy.Event]

// NewLogger builds a Logger writing newline-delimited JSON via stumpy,
// applying any additional stumpy options (see stumpy.WithWriter,
// stumpy.WithTimeField, etc).
func NewLogger(options ...stumpy.Option) Logger {
	return stumpy.L.New(stumpy.L.WithStumpy(options...))
}

// NopLogger returns a Logger with logging disabled; it is the default used
// by cpu.Pool and cpu.Device when no logger option is supplied.
func NopLogger() Logger {
	return stumpy.L.New(
		stumpy.L.WithStumpy(),
		logiface.WithLevel[*stumpy.Event](logiface.LevelDisabled),
	)
}
