// Package butter is the interface boundary a downstream dataflow-graph
// layer consumes: Executable nodes produce cached, shareable Future
// outputs that Sockets pull typed values out of. The graph-composition
// internals above this boundary are out of scope for this repository.
package butter

import (
	"github.com/google/uuid"
	"github.com/joeycumines/go-popcorn"
)

// Executable is a node in a downstream DAG: something identified by a
// stable UID, whose execution produces one cached slot per output.
type Executable interface {
	UID() uuid.UUID
	Exec(ctx *Context) ([]any, error)
}

// Context caches one Executable's output slots per UID, so that a node
// with multiple consumers in the graph is evaluated at most once. Each
// slot is a type-erased *popcorn.Future[*popcorn.Buffer[T]] for whatever T
// the corresponding Socket was built with.
type Context struct {
	cache map[uuid.UUID][]any
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{cache: make(map[uuid.UUID][]any)}
}

// ErrNoSuchElement indicates a socket referenced an output index an
// executable never produced (or an input was never set).
var ErrNoSuchElement = popcorn.NewError(popcorn.KindInvalidRawBuffer, "no such output element")

// ErrDowncast indicates a cached slot's type does not match the type a
// Socket requested.
var ErrDowncast = popcorn.NewError(popcorn.KindInvalidRawBuffer, "cached output has the wrong type")

func (c *Context) cacheExecutable(e Executable) error {
	if _, ok := c.cache[e.UID()]; ok {
		return nil
	}
	items, err := e.Exec(c)
	if err != nil {
		return err
	}
	c.cache[e.UID()] = items
	return nil
}

// tryCaching runs e (if not already cached) and downcasts its index-th
// output slot to *popcorn.Future[*popcorn.Buffer[T]].
func tryCaching[T any](ctx *Context, e Executable, index int) (*popcorn.Future[*popcorn.Buffer[T]], error) {
	if err := ctx.cacheExecutable(e); err != nil {
		return nil, err
	}
	items := ctx.cache[e.UID()]
	if index < 0 || index >= len(items) {
		return nil, ErrNoSuchElement
	}
	f, ok := items[index].(*popcorn.Future[*popcorn.Buffer[T]])
	if !ok {
		return nil, ErrDowncast
	}
	return f, nil
}

// SetInput directly injects a cached output for uid, bypassing Exec
// entirely. This is the escape hatch tests (and graph roots with no
// upstream executable) use to seed a buffer into the graph.
func SetInput[T any](ctx *Context, uid uuid.UUID, f *popcorn.Future[*popcorn.Buffer[T]]) {
	ctx.cache[uid] = []any{f}
}

// Socket is a single typed output pin on an Executable: the handle a
// downstream node holds to pull one of its upstream's outputs.
type Socket[T any] struct {
	executable Executable
	index      int
}

// NewSocket builds a Socket referring to e's index-th output.
func NewSocket[T any](e Executable, index int) *Socket[T] {
	return &Socket[T]{executable: e, index: index}
}

// Exec resolves this socket's future, caching e's execution in ctx if it
// has not already run.
func (s *Socket[T]) Exec(ctx *Context) (*popcorn.Future[*popcorn.Buffer[T]], error) {
	return tryCaching[T](ctx, s.executable, s.index)
}

// Placeholder is a zero-input Executable whose sole output is whatever was
// injected via SetInput under its own UID; it exists so a graph root can
// be wired through the same Executable/Socket machinery as every other
// node, rather than needing a special case.
type Placeholder[T any] struct {
	uid uuid.UUID
}

// NewPlaceholder allocates a Placeholder with a fresh UID.
func NewPlaceholder[T any]() *Placeholder[T] {
	return &Placeholder[T]{uid: uuid.New()}
}

// UID implements Executable.
func (p *Placeholder[T]) UID() uuid.UUID {
	return p.uid
}

// Exec implements Executable. It only runs if cacheExecutable finds no
// entry yet under p.uid, i.e. if SetInput was never called for it: in that
// case there is nothing to produce.
func (p *Placeholder[T]) Exec(ctx *Context) ([]any, error) {
	return nil, ErrNoSuchElement
}
