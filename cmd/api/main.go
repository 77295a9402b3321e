package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"maintenance-platform/internal/audit"
	"maintenance-platform/internal/auth"
	"maintenance-platform/internal/config"
	"maintenance-platform/internal/events"
	"maintenance-platform/internal/lifecycle"
	"maintenance-platform/pkg/logger"
	"maintenance-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Lifecycle engine and collaborators.
	store := lifecycle.NewPostgresStore(db)
	users := lifecycle.NewPostgresDirectory(db)
	seclog := audit.NewService(audit.NewPostgresRepo(db))
	publisher := events.NewRedisPublisher(rdb, cfg.Lifecycle.EventsChannel)

	engine := lifecycle.NewService(store, users, lifecycle.Options{
		SecurityLog:   seclog,
		Events:        publisher,
		ConfirmWindow: cfg.Lifecycle.ConfirmWindow,
	})

	// Background auto-confirm sweep. The Redis lease keeps replicas from
	// sweeping concurrently; the sweep itself is idempotent regardless.
	sweeper := &lifecycle.Sweeper{
		Engine:   engine,
		Interval: cfg.Lifecycle.SweepInterval,
		Gate:     lifecycle.NewRedisSweepGate(rdb, "", cfg.Lifecycle.SweepLockTTL),
		Log:      log.With("component", "sweeper"),
	}
	go sweeper.Run(rootCtx)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, registerDeps{
		Auth:   authManager,
		Engine: engine,
		Redis:  rdb,
		DB:     db,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
