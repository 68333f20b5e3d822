package cpu

import (
	"sync"
	"time"

	"github.com/joeycumines/go-popcorn"
)

// Pool is a fixed-size worker-goroutine pool draining a lock-free work
// queue. It implements popcorn.Scheduler, so any *popcorn.Future's Then/
// Callback can dispatch continuations onto it directly.
type Pool struct {
	q           *queue[func()]
	size        int
	idleBackoff time.Duration
	logger      popcorn.Logger

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

// NewPool starts a Pool of worker goroutines immediately; there is no
// separate Start step.
func NewPool(options ...PoolOption) *Pool {
	cfg := resolvePoolOptions(options)
	p := &Pool{
		q:           newQueue[func()](),
		size:        cfg.size,
		idleBackoff: cfg.idleBackoff,
		logger:      cfg.logger,
		closed:      make(chan struct{}),
	}
	p.wg.Add(p.size)
	for i := 0; i < p.size; i++ {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(index int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.closed:
			// drain whatever is left before exiting, matching the original
			// WorkerPool's close semantics: queued work still runs.
			for {
				f, ok := p.q.Dequeue()
				if !ok {
					return
				}
				p.run(index, f)
			}
		default:
		}

		f, ok := p.q.Dequeue()
		if !ok {
			select {
			case <-p.closed:
				continue
			case <-time.After(p.idleBackoff):
				continue
			}
		}
		p.run(index, f)
	}
}

func (p *Pool) run(workerIndex int, f func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Err().
				Any("recover", r).
				Int("worker", workerIndex).
				Log("recovered panic in worker")

			// A panic that reaches here is only logged; no Future/Event is
			// completed on its behalf. Thunks that complete an Event
			// themselves (device.go's CopyFromHost/CopyToHost) recover
			// their own panics first and complete that Event with a
			// KindPanic error.
		}
	}()
	f()
}

// Spawn enqueues f to run on the next available worker. Implements
// popcorn.Scheduler.
func (p *Pool) Spawn(f func()) {
	p.q.Enqueue(f)
}

// CreateEvent returns a new pending Event bound to this pool.
func (p *Pool) CreateEvent() *Event[struct{}] {
	return newEvent[struct{}](p)
}

// Close signals all workers to stop accepting new idle waits once the
// queue drains; it does not block for workers to exit (the original
// WorkerPool likewise never joins its threads on drop).
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
}
