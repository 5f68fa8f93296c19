package directory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned for mutations submitted after Close.
var ErrClosed = errors.New("directory store is closed")

const (
	mutationQueued int32 = iota
	mutationStarted
	mutationAbandoned
)

type mutation struct {
	id     uuid.UUID
	name   string
	ctx    context.Context
	run    func(ctx context.Context) error
	result chan error
	state  atomic.Int32
}

// mutationQueue runs submitted mutations one at a time in submission order.
type mutationQueue struct {
	mu      sync.Mutex
	pending []*mutation
	running bool
	closed  bool
	wake    chan struct{}
	stopped chan struct{}
}

func newMutationQueue() *mutationQueue {
	q := &mutationQueue{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go q.loop()
	return q
}

// submit enqueues run and waits for its result. When ctx ends before the
// mutation starts it is skipped and the caller gets ctx.Err(). Once started,
// the caller always gets the mutation's own result.
func (q *mutationQueue) submit(ctx context.Context, name string, run func(ctx context.Context) error) error {
	m := &mutation{
		id:     uuid.New(),
		name:   name,
		ctx:    ctx,
		run:    run,
		result: make(chan error, 1),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.pending = append(q.pending, m)
	depth := len(q.pending)
	q.mu.Unlock()
	q.signal()

	log.Debug().Str("mutation", name).Str("id", m.id.String()).Int("depth", depth).Msg("mutation queued")

	select {
	case err := <-m.result:
		return err
	case <-ctx.Done():
	}
	if m.state.CompareAndSwap(mutationQueued, mutationAbandoned) {
		return ctx.Err()
	}
	return <-m.result
}

func (q *mutationQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *mutationQueue) loop() {
	defer close(q.stopped)
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			closed := q.closed
			q.running = false
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		m := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.running = true
		q.mu.Unlock()

		q.execute(m)
	}
}

func (q *mutationQueue) execute(m *mutation) {
	logger := log.With().Str("mutation", m.name).Str("id", m.id.String()).Logger()
	// The submitter may abandon the mutation once its ctx ends.
	if m.ctx.Err() != nil || !m.state.CompareAndSwap(mutationQueued, mutationStarted) {
		err := m.ctx.Err()
		logger.Debug().Err(err).Msg("mutation abandoned before start")
		m.result <- err
		return
	}

	start := time.Now()
	err := m.run(m.ctx)
	event := logger.Debug()
	if err != nil {
		event = event.Err(err)
	}
	event.Dur("took", time.Since(start)).Msg("mutation finished")
	m.result <- err
}

// depth counts queued mutations including the one running.
func (q *mutationQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return len(q.pending) + 1
	}
	return len(q.pending)
}

// close rejects new mutations, lets queued ones finish and waits for the loop.
func (q *mutationQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
	<-q.stopped
}
