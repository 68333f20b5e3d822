package butter

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/joeycumines/go-popcorn"
	"github.com/joeycumines/go-popcorn/cpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUID() uuid.UUID { return uuid.New() }

type countingExecutable struct {
	uid  uuid.UUID
	exec func(ctx *Context) ([]any, error)
}

func (e *countingExecutable) UID() uuid.UUID { return e.uid }

func (e *countingExecutable) Exec(ctx *Context) ([]any, error) { return e.exec(ctx) }

func TestPlaceholderResolvesInjectedInput(t *testing.T) {
	dev := cpu.NewDevice()
	defer dev.Close()

	buf, err := popcorn.FromVec[float32](dev, []float32{42, 32.1})
	require.NoError(t, err)

	p := NewPlaceholder[float32]()
	ctx := NewContext()
	SetInput(ctx, p.UID(), popcorn.Resolved(buf))

	socket := NewSocket[float32](p, 0)
	f, err := socket.Exec(ctx)
	require.NoError(t, err)

	resolved, err := f.Await(context.Background())
	require.NoError(t, err)

	locked, err := resolved.TryLock()
	require.NoError(t, err)
	defer locked.Release()

	out, err := locked.SyncToVec(context.Background()).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float32{42, 32.1}, out)
}

func TestContextCachesExecutableAcrossSockets(t *testing.T) {
	dev := cpu.NewDevice()
	defer dev.Close()

	buf, err := popcorn.FromVec[float32](dev, []float32{1})
	require.NoError(t, err)

	calls := 0
	e := &countingExecutable{
		uid: newUID(),
		exec: func(ctx *Context) ([]any, error) {
			calls++
			return []any{popcorn.Resolved(buf)}, nil
		},
	}

	ctx := NewContext()
	s1 := NewSocket[float32](e, 0)
	s2 := NewSocket[float32](e, 0)

	_, err = s1.Exec(ctx)
	require.NoError(t, err)
	_, err = s2.Exec(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "executable must be cached, not re-run per socket")
}

func TestSocketWrongTypeDowncastFails(t *testing.T) {
	dev := cpu.NewDevice()
	defer dev.Close()

	buf, err := popcorn.FromVec[float32](dev, []float32{1})
	require.NoError(t, err)

	e := &countingExecutable{
		uid: newUID(),
		exec: func(ctx *Context) ([]any, error) {
			return []any{popcorn.Resolved(buf)}, nil
		},
	}

	ctx := NewContext()
	socket := NewSocket[int32](e, 0)
	_, err = socket.Exec(ctx)
	assert.ErrorIs(t, err, ErrDowncast)
}

func TestSocketMissingIndexFails(t *testing.T) {
	e := &countingExecutable{
		uid: newUID(),
		exec: func(ctx *Context) ([]any, error) {
			return nil, nil
		},
	}

	ctx := NewContext()
	socket := NewSocket[float32](e, 0)
	_, err := socket.Exec(ctx)
	assert.ErrorIs(t, err, ErrNoSuchElement)
}
