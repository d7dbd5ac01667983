package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Headers sent with every delivery
const (
	HeaderTaskName       = "X-Task-Name"
	HeaderTaskQueue      = "X-Task-Queue"
	HeaderTaskRetryCount = "X-Task-Retry-Count"
	HeaderTaskSecret     = "X-Task-Secret"
)

// DispatcherConfig configures task delivery
type DispatcherConfig struct {
	BaseURL     string        // prefix for task paths, e.g. http://localhost:8080
	Secret      string        // sent as X-Task-Secret when set
	Queues      []string      // queues to consume
	Concurrency int           // workers per queue
	MaxAttempts int           // deliveries before a task is buried
	Timeout     time.Duration // per delivery
	PollWait    time.Duration // how long Reserve blocks
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func (c *DispatcherConfig) setDefaults() {
	if len(c.Queues) == 0 {
		c.Queues = []string{DefaultQueue}
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.PollWait <= 0 {
		c.PollWait = 5 * time.Second
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Minute
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
}

// Dispatcher delivers reserved tasks to the application over HTTP
type Dispatcher struct {
	source Source
	client *http.Client
	cfg    DispatcherConfig
}

// NewDispatcher creates a dispatcher reading from source
func NewDispatcher(source Source, client *http.Client, cfg DispatcherConfig) *Dispatcher {
	cfg.setDefaults()
	if client == nil {
		client = &http.Client{}
	}
	return &Dispatcher{source: source, client: client, cfg: cfg}
}

// Run consumes all configured queues until ctx is cancelled
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, queue := range d.cfg.Queues {
		for i := 0; i < d.cfg.Concurrency; i++ {
			wg.Add(1)
			go func(queue string, worker int) {
				defer wg.Done()
				d.consume(ctx, queue, worker)
			}(queue, i)
		}
	}

	log.Info().
		Strs("queues", d.cfg.Queues).
		Int("concurrency", d.cfg.Concurrency).
		Str("base_url", d.cfg.BaseURL).
		Msg("Task dispatcher started")

	wg.Wait()
	log.Info().Msg("Task dispatcher stopped")
}

func (d *Dispatcher) consume(ctx context.Context, queue string, worker int) {
	for {
		if ctx.Err() != nil {
			return
		}

		task, err := d.source.Reserve(ctx, queue, d.cfg.PollWait)
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Str("queue", queue).Int("worker", worker).Msg("Failed to reserve task")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if task == nil {
			continue
		}

		d.Handle(ctx, task)
	}
}

// Handle delivers one task and settles it: done, retried or buried
func (d *Dispatcher) Handle(ctx context.Context, task *Task) {
	err := d.deliver(ctx, task)
	task.Attempts++

	l := log.With().
		Str("task", task.ID).
		Str("queue", task.Queue).
		Str("url", task.URL).
		Int("attempt", task.Attempts).
		Logger()

	// Settle with a fresh context so shutdown does not drop the task
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err == nil {
		l.Debug().Msg("Task delivered")
		if err := d.source.Ack(settleCtx, task); err != nil {
			l.Error().Err(err).Msg("Failed to ack task")
		}
		return
	}

	task.LastError = err.Error()

	if task.Attempts >= d.cfg.MaxAttempts {
		l.Error().Err(err).Msg("Task failed permanently, moving to dead letters")
		if err := d.source.Bury(settleCtx, task); err != nil {
			l.Error().Err(err).Msg("Failed to bury task")
		}
		return
	}

	delay := Backoff(task.Attempts, d.cfg.BaseBackoff, d.cfg.MaxBackoff)
	l.Warn().Err(err).Dur("retry_in", delay).Msg("Task failed, scheduling retry")
	if err := d.source.Retry(settleCtx, task, delay); err != nil {
		l.Error().Err(err).Msg("Failed to schedule retry")
	}
}

func (d *Dispatcher) deliver(ctx context.Context, task *Task) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	target := task.URL
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = d.cfg.BaseURL + target
	}

	var body io.Reader
	method := task.Method
	if method == "" {
		method = http.MethodPost
	}
	if method == http.MethodGet {
		if len(task.Params) > 0 {
			target += "?" + task.Params.Encode()
		}
	} else {
		body = strings.NewReader(task.Params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set(HeaderTaskName, task.ID)
	req.Header.Set(HeaderTaskQueue, task.Queue)
	req.Header.Set(HeaderTaskRetryCount, strconv.Itoa(task.Attempts))
	if d.cfg.Secret != "" {
		req.Header.Set(HeaderTaskSecret, d.cfg.Secret)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("task endpoint answered %d", resp.StatusCode)
	}
	return nil
}

// Backoff returns the delay before the given retry attempt (1-based),
// doubling from base and capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
