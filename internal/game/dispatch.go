package game

import "context"

// Dispatcher is the execution context a session posts round completions to.
// Completions write session state and then call the caller's onReady, so a
// caller that owns a single-threaded loop can hand that loop in here.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc adapts a plain function to Dispatcher.
type DispatcherFunc func(fn func())

func (f DispatcherFunc) Dispatch(fn func()) { f(fn) }

// Inline runs completions on the fetching goroutine.
var Inline Dispatcher = DispatcherFunc(func(fn func()) { fn() })

// Queue is a FIFO of completions drained by one consumer, the way a UI main
// loop drains its event queue.
type Queue struct {
	ch chan func()
}

// NewQueue returns a Queue buffering up to size pending completions.
// Dispatch blocks once the buffer is full.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 16
	}
	return &Queue{ch: make(chan func(), size)}
}

func (q *Queue) Dispatch(fn func()) { q.ch <- fn }

// RunOnce waits for the next completion and runs it on the calling goroutine.
func (q *Queue) RunOnce(ctx context.Context) error {
	select {
	case fn := <-q.ch:
		fn()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains completions until ctx ends.
func (q *Queue) Run(ctx context.Context) error {
	for {
		if err := q.RunOnce(ctx); err != nil {
			return err
		}
	}
}

// Drain runs everything already queued without waiting and reports how many ran.
func (q *Queue) Drain() int {
	n := 0
	for {
		select {
		case fn := <-q.ch:
			fn()
			n++
		default:
			return n
		}
	}
}
