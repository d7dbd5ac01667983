package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// promoteScript moves due delayed tasks onto the ready list atomically
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, v in ipairs(due) do
	redis.call('ZREM', KEYS[1], v)
	redis.call('LPUSH', KEYS[2], v)
end
return #due
`)

const promoteBatch = 100

// DefaultPrefix namespaces queue keys in Redis
const DefaultPrefix = "taskqueue"

// RedisQueue stores tasks in Redis.
// Ready tasks live in a list, retries in a sorted set scored by due time.
// A reserved task stays in the processing list until it is acked, retried or
// buried, so a worker that dies mid-delivery does not lose it.
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// NewRedisQueue creates a queue using keys under prefix
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisQueue{client: client, prefix: prefix}
}

func (q *RedisQueue) readyKey(queue string) string      { return q.prefix + ":" + queue + ":ready" }
func (q *RedisQueue) delayedKey(queue string) string    { return q.prefix + ":" + queue + ":delayed" }
func (q *RedisQueue) processingKey(queue string) string { return q.prefix + ":" + queue + ":processing" }
func (q *RedisQueue) deadKey(queue string) string       { return q.prefix + ":" + queue + ":dead" }

// Add pushes a task onto its ready list
func (q *RedisQueue) Add(ctx context.Context, task *Task) error {
	task.prepare()
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := q.client.LPush(ctx, q.readyKey(task.Queue), payload).Err(); err != nil {
		return fmt.Errorf("enqueue task %s: %w", task.ID, err)
	}
	return nil
}

// Reserve moves the oldest ready task to the processing list, promoting due retries first
func (q *RedisQueue) Reserve(ctx context.Context, queue string, wait time.Duration) (*Task, error) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := promoteScript.Run(ctx, q.client, []string{q.delayedKey(queue), q.readyKey(queue)}, now, promoteBatch).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("promote delayed tasks: %w", err)
	}

	raw, err := q.client.BLMove(ctx, q.readyKey(queue), q.processingKey(queue), "RIGHT", "LEFT", wait).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if errors.Is(err, redis.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("reserve task: %w", err)
	}

	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		// Drop the undecodable entry so it is not redelivered forever
		q.client.LRem(ctx, q.processingKey(queue), 1, raw)
		return nil, fmt.Errorf("decode task: %w", err)
	}
	task.reservation = raw
	return &task, nil
}

// release removes the reserved entry as part of pipe
func (q *RedisQueue) release(ctx context.Context, pipe redis.Pipeliner, task *Task) {
	if task.reservation != "" {
		pipe.LRem(ctx, q.processingKey(task.Queue), 1, task.reservation)
	}
}

// Ack drops a delivered task from the processing list
func (q *RedisQueue) Ack(ctx context.Context, task *Task) error {
	if task.reservation == "" {
		return nil
	}
	if err := q.client.LRem(ctx, q.processingKey(task.Queue), 1, task.reservation).Err(); err != nil {
		return fmt.Errorf("ack task %s: %w", task.ID, err)
	}
	task.reservation = ""
	return nil
}

// Retry schedules the task for delivery after delay
func (q *RedisQueue) Retry(ctx context.Context, task *Task, delay time.Duration) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	due := float64(time.Now().Add(delay).UnixMilli())

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, q.delayedKey(task.Queue), redis.Z{Score: due, Member: payload})
		q.release(ctx, pipe, task)
		return nil
	})
	if err != nil {
		return fmt.Errorf("schedule retry for task %s: %w", task.ID, err)
	}
	task.reservation = ""
	return nil
}

// Bury moves the task to the dead-letter list
func (q *RedisQueue) Bury(ctx context.Context, task *Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, q.deadKey(task.Queue), payload)
		q.release(ctx, pipe, task)
		return nil
	})
	if err != nil {
		return fmt.Errorf("bury task %s: %w", task.ID, err)
	}
	task.reservation = ""
	return nil
}

// RequeueInFlight returns tasks left in the processing list by a stopped
// worker to the front of the ready list. Call it before any dispatcher of
// the queue starts; tasks requeued this way may be delivered twice.
func (q *RedisQueue) RequeueInFlight(ctx context.Context, queue string) (int, error) {
	n := 0
	for {
		err := q.client.LMove(ctx, q.processingKey(queue), q.readyKey(queue), "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("requeue in-flight tasks: %w", err)
		}
		n++
	}
}

// Stats holds the list sizes of one queue
type Stats struct {
	Ready    int64
	Delayed  int64
	InFlight int64
	Dead     int64
}

// Stats reports list sizes for a queue
func (q *RedisQueue) Stats(ctx context.Context, queue string) (Stats, error) {
	pipe := q.client.Pipeline()
	r := pipe.LLen(ctx, q.readyKey(queue))
	d := pipe.ZCard(ctx, q.delayedKey(queue))
	p := pipe.LLen(ctx, q.processingKey(queue))
	x := pipe.LLen(ctx, q.deadKey(queue))
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{Ready: r.Val(), Delayed: d.Val(), InFlight: p.Val(), Dead: x.Val()}, nil
}
