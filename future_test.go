package popcorn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFutureResolveOnce(t *testing.T) {
	f, resolve := NewFuture[int]()

	require.True(t, resolve(1, nil))
	require.False(t, resolve(2, nil))

	val, err, completed := f.Result()
	require.True(t, completed)
	require.NoError(t, err)
	assert.Equal(t, 1, val)
}

func TestFutureAwait(t *testing.T) {
	f, resolve := NewFuture[string]()

	go func() {
		time.Sleep(time.Millisecond)
		resolve("done", nil)
	}()

	val, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", val)
}

func TestFutureAwaitContextCanceled(t *testing.T) {
	f, _ := NewFuture[int]()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFutureCallbackDispatchedForLateAndEarlyRegistrations(t *testing.T) {
	f, resolve := NewFuture[int]()

	var before, after int32
	f.Callback(inlineScheduler{}, func(val int, err error) {
		atomic.AddInt32(&before, int32(val))
	})

	resolve(7, nil)

	f.Callback(inlineScheduler{}, func(val int, err error) {
		atomic.AddInt32(&after, int32(val))
	})

	assert.Equal(t, int32(7), atomic.LoadInt32(&before))
	assert.Equal(t, int32(7), atomic.LoadInt32(&after))
}

func TestFutureCallbackFanOutConcurrent(t *testing.T) {
	f, resolve := NewFuture[int]()

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	results := make([]int, n)
	for i := 0; i < n; i++ {
		i := i
		f.Callback(inlineScheduler{}, func(val int, err error) {
			results[i] = val
			wg.Done()
		})
	}

	resolve(42, nil)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, 42, r)
	}
}

func TestThenChainsValue(t *testing.T) {
	f := Resolved(3)
	next := Then(f, inlineScheduler{}, func(v int, err error) (int, error) {
		return v * 2, err
	})

	val, err := next.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, val)
}

func TestThenPropagatesError(t *testing.T) {
	sentinel := errors.New("boom")
	f := Failed[int](sentinel)
	next := Then(f, inlineScheduler{}, func(v int, err error) (string, error) {
		return "", err
	})

	_, err := next.Await(context.Background())
	assert.ErrorIs(t, err, sentinel)
}

func TestBindChainsAsyncStages(t *testing.T) {
	f := Resolved(3)
	next := Bind(f, inlineScheduler{}, func(v int, err error) (*Future[int], error) {
		inner, resolve := NewFuture[int]()
		go func() {
			time.Sleep(time.Millisecond)
			resolve(v*2, nil)
		}()
		return inner, nil
	})

	val, err := next.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, val)
}

func TestBindPropagatesOuterError(t *testing.T) {
	sentinel := errors.New("boom")
	f := Failed[int](sentinel)
	next := Bind(f, inlineScheduler{}, func(v int, err error) (*Future[string], error) {
		return nil, err
	})

	_, err := next.Await(context.Background())
	assert.ErrorIs(t, err, sentinel)
}

func TestBindPropagatesInnerError(t *testing.T) {
	sentinel := errors.New("inner failure")
	f := Resolved(1)
	next := Bind(f, inlineScheduler{}, func(v int, err error) (*Future[int], error) {
		return Failed[int](sentinel), nil
	})

	_, err := next.Await(context.Background())
	assert.ErrorIs(t, err, sentinel)
}

func TestJoinWaitsForBoth(t *testing.T) {
	a, resolveA := NewFuture[int]()
	b, resolveB := NewFuture[string]()

	joined := Join(a, b, inlineScheduler{})

	go func() {
		time.Sleep(time.Millisecond)
		resolveA(1, nil)
		resolveB("x", nil)
	}()

	res, err := joined.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.A)
	assert.Equal(t, "x", res.B)
}

func TestJoinPropagatesFirstError(t *testing.T) {
	sentinel := errors.New("a failed")
	a := Failed[int](sentinel)
	b := Resolved("ok")

	joined := Join(a, b, inlineScheduler{})
	_, err := joined.Await(context.Background())
	assert.ErrorIs(t, err, sentinel)
}
