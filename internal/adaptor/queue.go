package adaptor

import "sync"

// taskQueue is an unbounded FIFO of closures. Posting never blocks, so pion
// callbacks can hand work to the session loop without risking a deadlock
// against a connection being closed on that loop.
type taskQueue struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{}
	done   chan struct{}
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// post appends fn. It reports false once the queue is closed.
func (q *taskQueue) post(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// drain removes and returns every queued task.
func (q *taskQueue) drain() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	tasks := q.tasks
	q.tasks = nil
	return tasks
}

// ready fires after a post.
func (q *taskQueue) ready() <-chan struct{} { return q.signal }

// closedCh is closed by close.
func (q *taskQueue) closedCh() <-chan struct{} { return q.done }

func (q *taskQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
}

func runAll(tasks []func()) {
	for _, fn := range tasks {
		fn()
	}
}
