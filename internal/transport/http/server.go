package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yong-jelly/usemap-sub002/internal/cache"
	"github.com/yong-jelly/usemap-sub002/internal/config"
	"github.com/yong-jelly/usemap-sub002/internal/database"
	"github.com/yong-jelly/usemap-sub002/internal/handler"
	"github.com/yong-jelly/usemap-sub002/internal/queue"
	"github.com/yong-jelly/usemap-sub002/internal/redis"
	"github.com/yong-jelly/usemap-sub002/internal/repository"
	"github.com/yong-jelly/usemap-sub002/internal/service"
	"github.com/yong-jelly/usemap-sub002/internal/storage"
	"github.com/yong-jelly/usemap-sub002/internal/transport/http/middleware"
	"github.com/yong-jelly/usemap-sub002/internal/worker"
)

const shutdownTimeout = 15 * time.Second

// Run wires every component, serves HTTP and runs the comment workers until
// SIGINT or SIGTERM.
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	// 2. Connect to Database
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// 3. Connect to Redis
	rdb, err := redis.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer rdb.Close()

	// 4. Object storage for attachments
	store, err := storage.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up object storage: %w", err)
	}

	// 5. Services
	threads := cache.NewThreadCache(rdb.Client, time.Duration(cfg.ThreadCacheTTLSecond)*time.Second)
	counts := cache.NewCountCache(rdb.Client)
	publisher := queue.NewPublisher(rdb.Client)

	commentService := service.NewCommentService(repository.NewCommentRepository(db), threads, counts, publisher)
	mediaService := service.NewMediaService(store)

	// 6. Workers
	manager := worker.NewManager(
		queue.NewConsumer(rdb.Client),
		worker.NewHandler(threads, counts, mediaService),
		worker.ManagerConfig{WorkerCount: cfg.WorkerCount},
	)
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	defer manager.Stop()

	// 7. Setup Server
	router := NewRouter(RouterConfig{
		CommentHandler: handler.NewCommentHandler(commentService),
		MediaHandler:   handler.NewMediaHandler(mediaService),
		JWTSecret:      cfg.JWTSecret,
		RateLimiter:    middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	})

	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Server] Listening on %s (storage=%s workers=%d)", srv.Addr, cfg.StorageBackend, cfg.WorkerCount)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("[Server] Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Printf("[Server] Stopped")
	return nil
}
