package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/photoshare/photoshare-web/internal/config"
	"github.com/photoshare/photoshare-web/internal/domain/auth"
	"github.com/photoshare/photoshare-web/internal/domain/photo"
	"github.com/photoshare/photoshare-web/internal/domain/realtime"
	"github.com/photoshare/photoshare-web/internal/middleware"
	"github.com/photoshare/photoshare-web/internal/pkg/database"
	"github.com/photoshare/photoshare-web/internal/pkg/imaging"
	"github.com/photoshare/photoshare-web/internal/pkg/jwt"
	"github.com/photoshare/photoshare-web/internal/pkg/logger"
	"github.com/photoshare/photoshare-web/internal/pkg/ratelimit"
	"github.com/photoshare/photoshare-web/internal/pkg/render"
	pkgresponse "github.com/photoshare/photoshare-web/internal/pkg/response"
	"github.com/photoshare/photoshare-web/internal/pkg/storage"
	"github.com/photoshare/photoshare-web/internal/pkg/taskqueue"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		Service:     "api",
	})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Str("storage", cfg.StorageDriver).
		Msg("Starting Photoshare")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	blobs, err := newBlobStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create blob storage")
	}

	renderer, err := render.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse templates")
	}

	// ---------- Live events ----------
	hub := realtime.NewHub(rdb)
	go hub.Run()
	defer hub.Shutdown()

	// ---------- Task queue ----------
	queue := newTaskQueue(ctx, cfg, rdb)

	// ---------- Services ----------
	jwtService := jwt.NewService(cfg.SessionSecret, cfg.SessionTTL)
	identity := auth.NewSessionIdentity(cfg.AuthLoginURL, cfg.AuthLogoutURL)

	photoRepo := photo.NewRepository(db)
	photoService := photo.NewService(photoRepo, blobs, imaging.NewThumbnailer(cfg.ThumbnailSize), queue, hub)

	limiter := ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Stop()

	deps := routerDeps{
		JWT:      jwtService,
		Photo:    photo.NewHandler(photoService, identity, renderer, cfg.MaxUploadBytes()),
		Realtime: realtime.NewHandler(hub, cfg.AllowedOrigins),
		Limiter:  limiter,
	}
	if cfg.AuthDevLogin {
		deps.Auth = auth.NewHandler(auth.NewService(jwtService), identity, renderer, auth.CookieConfig{
			Name:   cfg.SessionCookie,
			Secure: cfg.IsProduction(),
		})
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

type routerDeps struct {
	JWT      *jwt.Service
	Photo    *photo.Handler
	Auth     *auth.Handler // nil unless the development login is enabled
	Realtime *realtime.Handler
	Limiter  *ratelimit.KeyedRateLimiter
}

func newRouter(cfg *config.Config, deps routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(middleware.Session(deps.JWT, cfg.SessionCookie))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})

	// Websocket upgrades must not pass through Compress
	r.Get("/ws", deps.Realtime.WebSocket)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Compress(5))

		if deps.Auth != nil {
			r.Mount("/_auth", deps.Auth.Routes())
		}
		r.Mount("/", deps.Photo.Routes(middleware.RateLimit(deps.Limiter), middleware.TaskAuth(cfg.TaskSecret)))
	})

	return r
}

func newBlobStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case "local", "":
		return storage.NewLocalStorage(cfg.StorageLocalPath)
	case "s3":
		return storage.NewS3Storage(ctx, storage.S3Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		})
	case "r2":
		return storage.NewR2Storage(ctx, storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			BucketName:      cfg.R2BucketName,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// newTaskQueue returns the Redis queue served by cmd/task-worker. Without Redis
// tasks stay in memory and this process delivers them and runs the cron itself.
func newTaskQueue(ctx context.Context, cfg *config.Config, rdb *redis.Client) taskqueue.Queue {
	if rdb != nil {
		return taskqueue.NewRedisQueue(rdb, taskqueue.DefaultPrefix)
	}

	log.Warn().Msg("No Redis configured, delivering tasks in-process")

	queue := taskqueue.NewMemoryQueue()
	client := &http.Client{Timeout: cfg.TaskTimeout}

	dispatcher := taskqueue.NewDispatcher(queue, client, taskqueue.DispatcherConfig{
		BaseURL:     localBaseURL(cfg),
		Secret:      cfg.TaskSecret,
		Queues:      []string{photo.ThumbnailQueue},
		MaxAttempts: cfg.TaskMaxAttempts,
		Timeout:     cfg.TaskTimeout,
	})
	go dispatcher.Run(ctx)

	cron := taskqueue.NewCron(client, localBaseURL(cfg)+"/cron_thumbnail", cfg.TaskSecret, cfg.CronInterval)
	go cron.Run(ctx)

	go func() {
		<-ctx.Done()
		queue.Close()
	}()

	return queue
}

// localBaseURL targets this process on loopback
func localBaseURL(cfg *config.Config) string {
	return "http://127.0.0.1:" + cfg.Port
}
