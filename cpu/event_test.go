package cpu

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventCompleteOnce(t *testing.T) {
	pool := NewPool(WithPoolSize(1))
	defer pool.Close()

	e := newEvent[int](pool)

	assert.True(t, e.Complete(1, nil))
	assert.False(t, e.Complete(2, nil))

	val, err, completed := e.Result()
	require.True(t, completed)
	require.NoError(t, err)
	assert.Equal(t, 1, val)
}

func TestEventCallbackBeforeAndAfterCompletion(t *testing.T) {
	pool := NewPool(WithPoolSize(2))
	defer pool.Close()

	e := newEvent[int](pool)

	var before, after int32
	var wg sync.WaitGroup
	wg.Add(2)

	e.Callback(func(v int, err error) {
		atomic.StoreInt32(&before, int32(v))
		wg.Done()
	})

	e.Complete(9, nil)

	e.Callback(func(v int, err error) {
		atomic.StoreInt32(&after, int32(v))
		wg.Done()
	})

	wg.Wait()
	assert.Equal(t, int32(9), atomic.LoadInt32(&before))
	assert.Equal(t, int32(9), atomic.LoadInt32(&after))
}

func TestEventThenChains(t *testing.T) {
	pool := NewPool(WithPoolSize(1))
	defer pool.Close()

	e := newEvent[int](pool)
	next := Then(e, pool, func(v int, err error) (string, error) {
		return "value", err
	})

	e.Complete(1, nil)

	f := next.Future()
	val, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "value", val)
}
