package cpu

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFOSingleProducer(t *testing.T) {
	q := newQueue[int]()

	for i := 0; i < 10; i++ {
		q.Enqueue(i)
	}

	for i := 0; i < 10; i++ {
		v, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}

	_, ok := q.Dequeue()
	assert.False(t, ok)
}

func TestQueueConcurrentProducersConsumers(t *testing.T) {
	q := newQueue[int]()

	const producers = 8
	const perProducer = 500
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		p := p
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(p*perProducer + i)
			}
		}()
	}
	wg.Wait()

	seen := make([]int, 0, producers*perProducer)
	for {
		v, ok := q.Dequeue()
		if !ok {
			break
		}
		seen = append(seen, v)
	}

	require.Len(t, seen, producers*perProducer)
	sort.Ints(seen)
	for i, v := range seen {
		assert.Equal(t, i, v)
	}
}
