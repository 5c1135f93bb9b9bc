// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/furnigo/furnigo-api/internal/config"
	"github.com/furnigo/furnigo-api/internal/database"
	"github.com/furnigo/furnigo-api/internal/graphql"
	"github.com/furnigo/furnigo-api/internal/i18n"
	"github.com/furnigo/furnigo-api/internal/router"
	"github.com/furnigo/furnigo-api/internal/services"
	"github.com/furnigo/furnigo-api/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	setupLogging(cfg.Log)

	// Initialize i18n
	if err := i18n.Initialize(cfg.I18n.DefaultLocale); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize i18n")
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gql := graphql.NewClient(&cfg.Supabase, &http.Client{Timeout: cfg.Workflow.UploadTimeout})

	storage, err := services.NewStorageService(&cfg.Storage)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize storage")
	}

	userService := services.NewUserService(gql, storage, &cfg.Storage, &cfg.Workflow)
	postService := services.NewPostService(gql, &cfg.Workflow)
	attachmentService := services.NewAttachmentService(storage, &cfg.Storage, &cfg.Workflow)

	var locker services.UserLocker = services.NewLocalUserLocker()
	if cfg.RedisEnabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logrus.WithError(err).Fatal("Failed to connect to Redis")
		}
		locker = services.NewRedisUserLocker(rdb, cfg.Workflow.LockTTL)
		logrus.WithField("addr", cfg.Redis.Addr()).Info("Using Redis for post creation locks")
	}

	var ledger services.RunRecorder = services.NopRecorder{}
	if cfg.Database.Enabled {
		// Initialize database
		db, err := database.Initialize(cfg.Database)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to initialize database")
		}
		defer database.Close(db)

		// Run database migrations
		if err := database.RunMigrations(db); err != nil {
			logrus.WithError(err).Fatal("Failed to run migrations")
		}
		ledger = services.NewRunLedger(db)
	}

	workflow := services.NewCreatePostWorkflow(userService, postService, attachmentService, locker, ledger, &cfg.Workflow)

	deps := router.Dependencies{
		Posts:    postService,
		Workflow: workflow,
		Runs:     ledger,
		Users:    userService,
		Verifier: utils.NewTokenVerifier(cfg.Supabase.JWTSecret),
	}
	if storage.IsLocal() {
		deps.UploadsDir = cfg.Storage.LocalDir
	}

	// Initialize router
	r := router.Initialize(ctx, cfg, deps)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logrus.WithField("addr", srv.Addr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}

	logrus.Info("Server exited")
}

func setupLogging(cfg config.LogConfig) {
	logrus.SetOutput(os.Stdout)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
