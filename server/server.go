package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MSMA/cache"
	"MSMA/config"
	"MSMA/core/auth"
	"MSMA/core/classifier"
	"MSMA/core/ingest"
	"MSMA/db"
	"MSMA/logger"
	"MSMA/repository"
	"MSMA/storage"

	"github.com/gorilla/mux"
)

// Start initializes all dependencies and runs the HTTP server until it
// receives SIGINT or SIGTERM. Shutdown order matters: the listener closes
// first so no new submissions arrive, then the worker pool drains.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})
	defer logger.Sync()

	auth.SetSecret(cfg.JWTSecret)

	if err := storage.InitMinio(cfg); err != nil {
		logger.Fatal("failed to initialize MinIO", logger.ErrorField(err))
	}

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.InitDB(); err != nil {
		logger.Fatal("failed to initialize database schema", logger.ErrorField(err))
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to connect GORM", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Fatal("failed to connect to Redis", logger.ErrorField(err))
	}
	defer cache.CloseRedis()

	trackRepo := repository.NewTrackRepository(db.GormDB)
	genreRepo := repository.NewGenreRepository(db.GormDB)
	genreCache := cache.NewGenreCache(cache.RedisClient)
	resolver := ingest.NewGenreResolver(genreRepo, genreCache)

	classifierClient := classifier.NewClient(cfg.ClassifierBaseURL, cfg.ClassifierTimeout)

	scratch, err := ingest.NewScratchStore(cfg.ScratchDir)
	if err != nil {
		logger.Fatal("failed to initialize scratch storage", logger.ErrorField(err))
	}

	orchestrator := ingest.NewOrchestrator(trackRepo, resolver, classifierClient, scratch)
	queue := ingest.NewQueue(cfg.IngestQueueSize)
	pool := ingest.NewPool(queue, orchestrator, cfg.IngestWorkers)
	pool.Start()

	apiHandler := NewAPIHandler(trackRepo, genreRepo, queue, cfg)

	router := mux.NewRouter()

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	apiHandler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Minute, // uploads can be large
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", logger.ErrorField(err))
	}

	// With the listener closed no new events arrive; drain the queue so
	// already-accepted submissions are not stranded in SUBMITTED.
	pool.Stop()

	logger.Info("server stopped")
}
