package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/photoshare/photoshare-web/internal/config"
	"github.com/photoshare/photoshare-web/internal/domain/photo"
	"github.com/photoshare/photoshare-web/internal/pkg/database"
	"github.com/photoshare/photoshare-web/internal/pkg/logger"
	"github.com/photoshare/photoshare-web/internal/pkg/taskqueue"
)

const statsInterval = time.Minute

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		Service:     "task-worker",
	})

	log.Info().Str("target", cfg.BaseURL).Msg("Starting task-worker")

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	if rdb == nil {
		log.Fatal().Msg("task-worker needs REDIS_URL; without Redis the API delivers tasks itself")
	}
	defer database.CloseRedis(rdb)

	queue := taskqueue.NewRedisQueue(rdb, taskqueue.DefaultPrefix)
	client := &http.Client{Timeout: cfg.TaskTimeout}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	// Tasks a previous worker reserved but never settled
	if n, err := queue.RequeueInFlight(ctx, photo.ThumbnailQueue); err != nil {
		log.Fatal().Err(err).Msg("Failed to requeue in-flight tasks")
	} else if n > 0 {
		log.Warn().Int("count", n).Str("queue", photo.ThumbnailQueue).Msg("Requeued in-flight tasks")
	}

	dispatcher := taskqueue.NewDispatcher(queue, client, taskqueue.DispatcherConfig{
		BaseURL:     cfg.BaseURL,
		Secret:      cfg.TaskSecret,
		Queues:      []string{photo.ThumbnailQueue},
		MaxAttempts: cfg.TaskMaxAttempts,
		Timeout:     cfg.TaskTimeout,
	})
	cron := taskqueue.NewCron(client, cfg.BaseURL+"/cron_thumbnail", cfg.TaskSecret, cfg.CronInterval)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		cron.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		logStats(ctx, queue, photo.ThumbnailQueue)
	}()

	wg.Wait()
	log.Info().Msg("task-worker stopped")
}

// logStats reports queue depth while anything is pending or dead
func logStats(ctx context.Context, queue *taskqueue.RedisQueue, name string) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		stats, err := queue.Stats(ctx, name)
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Str("queue", name).Msg("Failed to read queue stats")
			}
			continue
		}
		if stats == (taskqueue.Stats{}) {
			continue
		}
		log.Info().
			Str("queue", name).
			Int64("ready", stats.Ready).
			Int64("delayed", stats.Delayed).
			Int64("in_flight", stats.InFlight).
			Int64("dead", stats.Dead).
			Msg("Queue stats")
	}
}
