// Package taskqueue delivers deferred HTTP tasks with at-least-once semantics.
//
// Producers Add tasks naming a target URL and form parameters. A Dispatcher
// reserves them from a Source and POSTs them to the application; a non-2xx
// answer schedules a retry with exponential backoff until the attempt budget
// is spent, after which the task is moved to the dead-letter list.
package taskqueue

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// DefaultQueue is used when a task names no queue
const DefaultQueue = "default"

// ErrClosed is returned by a Source that has been shut down
var ErrClosed = errors.New("task queue closed")

// Task is one unit of deferred work
type Task struct {
	ID         string     `json:"id"`
	Queue      string     `json:"queue"`
	Method     string     `json:"method"`
	URL        string     `json:"url"`
	Params     url.Values `json:"params,omitempty"`
	Attempts   int        `json:"attempts"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	LastError  string     `json:"last_error,omitempty"`

	// reservation is the stored form a Source handed out, used to settle it
	reservation string
}

// NewTask builds a POST task for the given path
func NewTask(queue, path string, params url.Values) *Task {
	return &Task{Queue: queue, Method: http.MethodPost, URL: path, Params: params}
}

// prepare fills defaults before the task is stored
func (t *Task) prepare() {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Queue == "" {
		t.Queue = DefaultQueue
	}
	if t.Method == "" {
		t.Method = http.MethodPost
	}
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now().UTC()
	}
}

// Queue accepts new tasks
type Queue interface {
	Add(ctx context.Context, task *Task) error
}

// Source hands out stored tasks to a dispatcher
type Source interface {
	// Reserve blocks up to wait for a task. Returns nil, nil on timeout.
	Reserve(ctx context.Context, queue string, wait time.Duration) (*Task, error)

	// Ack settles a delivered task.
	Ack(ctx context.Context, task *Task) error

	// Retry puts the task back to become available after delay.
	Retry(ctx context.Context, task *Task, delay time.Duration) error

	// Bury moves a task that exhausted its attempts to the dead-letter list.
	Bury(ctx context.Context, task *Task) error
}
