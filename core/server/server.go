package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"calendar-sync/core/cache"
	"calendar-sync/core/config"
	"calendar-sync/core/constants"
	"calendar-sync/core/database"
	"calendar-sync/core/logger"
	"calendar-sync/core/middleware"
	"calendar-sync/core/worker"
	"calendar-sync/modules/audit"
	"calendar-sync/modules/calendar"
	"calendar-sync/modules/sync"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

// Run loads configuration, wires every module and serves HTTP until SIGINT or SIGTERM.
func Run() error {
	cfg, err := config.Init()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.IsDevelopment()); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	db, err := database.InitDB(database.DatabaseConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return err
	}

	ctx := context.Background()
	var (
		store        cache.Cache
		enqueuer     worker.Enqueuer
		workerServer *worker.Server
	)
	if !cfg.RedisEnabled() {
		logger.Warn("Server:Run:Redis:Disabled", "reason", "REDIS_ENABLED=false, using in-memory cache without background queue")
		store = cache.NewMemoryCache()
	} else {
		redisClient, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer redisClient.Close()
		store = cache.NewRedisCache(redisClient)

		workerCfg := worker.Config{
			RedisAddr:     cfg.Redis.Addr,
			RedisPassword: cfg.Redis.Password,
			RedisDB:       cfg.Redis.DB,
			Concurrency:   cfg.Sync.WorkerConcurrency,
		}
		client := worker.NewClient(workerCfg)
		defer client.Close()
		enqueuer = client
		workerServer = worker.NewServer(workerCfg)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	e.Use(echoMiddleware.CORS())
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	mw := middleware.NewMiddleware(cfg.JWT.Secret)
	auditService := audit.Init(e, &db, mw)
	tokens := calendar.Init(e, cfg, &db, store, auditService, mw)
	sync.Init(e, cfg, &db, tokens, auditService, mw, enqueuer, workerServer)

	if workerServer != nil {
		if err := workerServer.Start(); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}
		defer workerServer.Shutdown()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server:Run:Listening", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		logger.Info("Server:Run:Shutdown", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
