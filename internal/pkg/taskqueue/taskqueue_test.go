package taskqueue

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	defer q.Close()

	require.NoError(t, q.Add(ctx, NewTask("thumbnails", "/generate_thumbnail", url.Values{"key": {"1"}})))
	require.NoError(t, q.Add(ctx, NewTask("thumbnails", "/generate_thumbnail", url.Values{"key": {"2"}})))
	assert.Equal(t, 2, q.Len("thumbnails"))

	first, err := q.Reserve(ctx, "thumbnails", time.Second)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "1", first.Params.Get("key"))
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, http.MethodPost, first.Method)

	second, err := q.Reserve(ctx, "thumbnails", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "2", second.Params.Get("key"))
	assert.NotEqual(t, first.ID, second.ID)
}

func TestMemoryQueue_ReserveTimesOut(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()

	task, err := q.Reserve(context.Background(), "empty", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestMemoryQueue_ReserveWakesOnAdd(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	defer q.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Add(ctx, NewTask("q", "/x", nil))
	}()

	task, err := q.Reserve(ctx, "q", 2*time.Second)
	require.NoError(t, err)
	assert.NotNil(t, task)
}

func TestMemoryQueue_RetryDelays(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	defer q.Close()

	task := NewTask("q", "/x", nil)
	task.prepare()
	require.NoError(t, q.Retry(ctx, task, 20*time.Millisecond))
	assert.Equal(t, 0, q.Len("q"))

	got, err := q.Reserve(ctx, "q", 2*time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.ID, got.ID)
}

func TestMemoryQueue_Close(t *testing.T) {
	q := NewMemoryQueue()
	q.Close()

	_, err := q.Reserve(context.Background(), "q", time.Second)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBackoff(t *testing.T) {
	base, max := time.Second, 10*time.Second
	assert.Equal(t, time.Second, Backoff(0, base, max))
	assert.Equal(t, time.Second, Backoff(1, base, max))
	assert.Equal(t, 2*time.Second, Backoff(2, base, max))
	assert.Equal(t, 8*time.Second, Backoff(4, base, max))
	assert.Equal(t, max, Backoff(5, base, max))
	assert.Equal(t, max, Backoff(50, base, max))
}

type recordedCall struct {
	method, path, key, name, retry, secret, contentType string
}

func recordingServer(t *testing.T, status int) (*httptest.Server, func() []recordedCall) {
	t.Helper()
	var mu sync.Mutex
	var calls []recordedCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		mu.Lock()
		calls = append(calls, recordedCall{
			method:      r.Method,
			path:        r.URL.Path,
			key:         r.PostForm.Get("key"),
			name:        r.Header.Get(HeaderTaskName),
			retry:       r.Header.Get(HeaderTaskRetryCount),
			secret:      r.Header.Get(HeaderTaskSecret),
			contentType: r.Header.Get("Content-Type"),
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recordedCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedCall(nil), calls...)
	}
}

func TestDispatcher_DeliversForm(t *testing.T) {
	srv, calls := recordingServer(t, http.StatusOK)
	q := NewMemoryQueue()
	defer q.Close()

	d := NewDispatcher(q, srv.Client(), DispatcherConfig{BaseURL: srv.URL + "/", Secret: "s"})

	task := NewTask("thumbnails", "/generate_thumbnail", url.Values{"key": {"42"}})
	task.prepare()
	d.Handle(context.Background(), task)

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, http.MethodPost, got[0].method)
	assert.Equal(t, "/generate_thumbnail", got[0].path)
	assert.Equal(t, "42", got[0].key)
	assert.Equal(t, task.ID, got[0].name)
	assert.Equal(t, "0", got[0].retry)
	assert.Equal(t, "s", got[0].secret)
	assert.Equal(t, "application/x-www-form-urlencoded", got[0].contentType)

	assert.Equal(t, 0, q.Len("thumbnails"))
	assert.Empty(t, q.Dead("thumbnails"))
}

func TestDispatcher_RetriesThenBuries(t *testing.T) {
	srv, calls := recordingServer(t, http.StatusInternalServerError)
	q := NewMemoryQueue()
	defer q.Close()

	d := NewDispatcher(q, srv.Client(), DispatcherConfig{
		BaseURL:     srv.URL,
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	})

	ctx := context.Background()
	require.NoError(t, q.Add(ctx, NewTask("thumbnails", "/generate_thumbnail", url.Values{"key": {"1"}})))

	for i := 0; i < 3; i++ {
		task, err := q.Reserve(ctx, "thumbnails", 2*time.Second)
		require.NoError(t, err)
		require.NotNil(t, task, "attempt %d", i+1)
		d.Handle(ctx, task)
	}

	got := calls()
	require.Len(t, got, 3)
	assert.Equal(t, "0", got[0].retry)
	assert.Equal(t, "2", got[2].retry)

	dead := q.Dead("thumbnails")
	require.Len(t, dead, 1)
	assert.Equal(t, 3, dead[0].Attempts)
	assert.Contains(t, dead[0].LastError, "500")
}

func TestDispatcher_RunStopsOnCancel(t *testing.T) {
	srv, calls := recordingServer(t, http.StatusOK)
	q := NewMemoryQueue()
	defer q.Close()

	d := NewDispatcher(q, srv.Client(), DispatcherConfig{
		BaseURL:  srv.URL,
		Queues:   []string{"thumbnails"},
		PollWait: 20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	require.NoError(t, q.Add(ctx, NewTask("thumbnails", "/generate_thumbnail", url.Values{"key": {"9"}})))
	require.Eventually(t, func() bool { return len(calls()) == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestCron_Trigger(t *testing.T) {
	var gotSecret string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get(HeaderTaskSecret)
		if r.URL.Path != "/cron_thumbnail" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewCron(srv.Client(), srv.URL+"/cron_thumbnail", "s", time.Minute)
	require.NoError(t, c.Trigger(context.Background()))
	assert.Equal(t, "s", gotSecret)

	bad := NewCron(srv.Client(), srv.URL+"/nope", "", time.Minute)
	assert.Error(t, bad.Trigger(context.Background()))
}

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_URL")
	if addr == "" {
		addr = "redis://localhost:6379/15"
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		t.Skipf("invalid TEST_REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisQueue_AddReserveRetryBury(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	prefix := "taskqueue-test-" + time.Now().Format("150405.000000000")
	q := NewRedisQueue(client, prefix)
	t.Cleanup(func() {
		client.Del(ctx, q.readyKey("thumbnails"), q.delayedKey("thumbnails"), q.processingKey("thumbnails"), q.deadKey("thumbnails"))
	})

	require.NoError(t, q.Add(ctx, NewTask("thumbnails", "/generate_thumbnail", url.Values{"key": {"1"}})))
	require.NoError(t, q.Add(ctx, NewTask("thumbnails", "/generate_thumbnail", url.Values{"key": {"2"}})))

	first, err := q.Reserve(ctx, "thumbnails", time.Second)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "1", first.Params.Get("key"))

	first.Attempts = 1
	require.NoError(t, q.Retry(ctx, first, 0))

	second, err := q.Reserve(ctx, "thumbnails", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "2", second.Params.Get("key"))

	again, err := q.Reserve(ctx, "thumbnails", time.Second)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 1, again.Attempts)

	require.NoError(t, q.Bury(ctx, again))
	require.NoError(t, q.Ack(ctx, second))

	stats, err := q.Stats(ctx, "thumbnails")
	require.NoError(t, err)
	assert.Equal(t, Stats{Dead: 1}, stats)
}

func newTestRedisQueue(t *testing.T) (*RedisQueue, *redis.Client) {
	t.Helper()
	client := setupTestRedis(t)
	q := NewRedisQueue(client, "taskqueue-test-"+time.Now().Format("150405.000000000"))
	t.Cleanup(func() {
		ctx := context.Background()
		client.Del(ctx, q.readyKey("thumbnails"), q.delayedKey("thumbnails"), q.processingKey("thumbnails"), q.deadKey("thumbnails"))
	})
	return q, client
}

func TestRedisQueue_ReservedTaskSurvivesWorkerLoss(t *testing.T) {
	q, _ := newTestRedisQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Add(ctx, NewTask("thumbnails", "/generate_thumbnail", url.Values{"key": {"7"}})))

	// Reserved but never settled, as when a worker dies mid-delivery
	lost, err := q.Reserve(ctx, "thumbnails", time.Second)
	require.NoError(t, err)
	require.NotNil(t, lost)

	stats, err := q.Stats(ctx, "thumbnails")
	require.NoError(t, err)
	assert.Equal(t, Stats{InFlight: 1}, stats)

	n, err := q.RequeueInFlight(ctx, "thumbnails")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	again, err := q.Reserve(ctx, "thumbnails", time.Second)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, lost.ID, again.ID)
	assert.Equal(t, "7", again.Params.Get("key"))

	require.NoError(t, q.Ack(ctx, again))
	stats, err = q.Stats(ctx, "thumbnails")
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestDispatcher_AcksDeliveredRedisTask(t *testing.T) {
	q, _ := newTestRedisQueue(t)
	ctx := context.Background()
	srv, calls := recordingServer(t, http.StatusOK)

	d := NewDispatcher(q, srv.Client(), DispatcherConfig{BaseURL: srv.URL})
	require.NoError(t, q.Add(ctx, NewTask("thumbnails", "/generate_thumbnail", url.Values{"key": {"3"}})))

	task, err := q.Reserve(ctx, "thumbnails", time.Second)
	require.NoError(t, err)
	require.NotNil(t, task)
	d.Handle(ctx, task)

	require.Len(t, calls(), 1)
	stats, err := q.Stats(ctx, "thumbnails")
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}
