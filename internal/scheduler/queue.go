package scheduler

import "sync"

// taskQueue holds work posted to a Loop until the loop goroutine drains it.
type taskQueue struct {
	mu    sync.Mutex
	tasks []func()
}

// push appends fn and reports whether the queue was empty before, in which
// case the loop needs a wake-up.
func (q *taskQueue) push(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, fn)
	return len(q.tasks) == 1
}

// drain returns all queued tasks in posting order and empties the queue.
func (q *taskQueue) drain() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.tasks
	q.tasks = make([]func(), 0, cap(out))
	return out
}

func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// clear drops every queued task.
func (q *taskQueue) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = nil
}
