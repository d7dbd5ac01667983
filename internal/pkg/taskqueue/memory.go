package taskqueue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue keeps tasks in process memory.
// Used when no Redis is configured; tasks are lost on restart.
type MemoryQueue struct {
	mu     sync.Mutex
	ready  map[string][]*Task
	dead   map[string][]*Task
	notify map[string]chan struct{}
	timers []*time.Timer
	closed bool
}

// NewMemoryQueue creates an empty in-process queue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		ready:  make(map[string][]*Task),
		dead:   make(map[string][]*Task),
		notify: make(map[string]chan struct{}),
	}
}

func (q *MemoryQueue) signal(queue string) chan struct{} {
	ch, ok := q.notify[queue]
	if !ok {
		ch = make(chan struct{}, 1)
		q.notify[queue] = ch
	}
	return ch
}

func (q *MemoryQueue) push(task *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.ready[task.Queue] = append(q.ready[task.Queue], task)
	select {
	case q.signal(task.Queue) <- struct{}{}:
	default:
	}
}

// Add appends a task to its queue
func (q *MemoryQueue) Add(ctx context.Context, task *Task) error {
	task.prepare()
	cp := *task
	q.push(&cp)
	return nil
}

func (q *MemoryQueue) pop(queue string) (*Task, chan struct{}, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, nil, true
	}
	if tasks := q.ready[queue]; len(tasks) > 0 {
		task := tasks[0]
		q.ready[queue] = tasks[1:]
		return task, nil, false
	}
	return nil, q.signal(queue), false
}

// Reserve takes the oldest task of a queue, waiting up to wait
func (q *MemoryQueue) Reserve(ctx context.Context, queue string, wait time.Duration) (*Task, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		task, ch, closed := q.pop(queue)
		if closed {
			return nil, ErrClosed
		}
		if task != nil {
			return task, nil
		}

		select {
		case <-ch:
		case <-timer.C:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Ack is a no-op: a reserved task is already out of the queue
func (q *MemoryQueue) Ack(ctx context.Context, task *Task) error {
	return nil
}

// Retry makes the task available again after delay
func (q *MemoryQueue) Retry(ctx context.Context, task *Task, delay time.Duration) error {
	cp := *task
	t := time.AfterFunc(delay, func() { q.push(&cp) })

	q.mu.Lock()
	q.timers = append(q.timers, t)
	q.mu.Unlock()
	return nil
}

// Bury records a dead task
func (q *MemoryQueue) Bury(ctx context.Context, task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := *task
	q.dead[task.Queue] = append(q.dead[task.Queue], &cp)
	return nil
}

// Len returns the number of ready tasks in a queue
func (q *MemoryQueue) Len(queue string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready[queue])
}

// Dead returns the dead-lettered tasks of a queue
func (q *MemoryQueue) Dead(queue string) []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*Task(nil), q.dead[queue]...)
}

// Close stops pending retries and wakes blocked consumers
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for _, t := range q.timers {
		t.Stop()
	}
	for _, ch := range q.notify {
		close(ch)
	}
}
