package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tracking_cf/internal/api"
	"tracking_cf/internal/api/handler"
	"tracking_cf/internal/app"
	"tracking_cf/internal/app/worker"
	"tracking_cf/internal/common/security"
	"tracking_cf/internal/platform/config"
	"tracking_cf/internal/platform/database"
	"tracking_cf/internal/platform/logging"
	"tracking_cf/internal/platform/queue"
)

func main() {
	runWorker := flag.Bool("worker", true, "run the task worker and scheduler in this process")
	flag.Parse()

	// 1. Configuration and logging
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	// 2. JWT
	security.InitJWT(cfg.JWTKey, cfg.JWTExp)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Database, redis, repositories and services
	a, err := app.New(ctx, cfg, logger, true)
	if err != nil {
		logger.Error("Startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := database.RunMigrations(a.DB); err != nil {
		logger.Error("Migrations failed", "error", err)
		os.Exit(1)
	}

	// 4. Task queue
	redisOpt := queue.AsynqOpt(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	enqueuer := worker.NewEnqueuer(redisOpt)
	defer enqueuer.Close()

	if *runWorker {
		handlers := worker.NewHandlers(a.Sweeper, a.ContestSvc, a.Ratings, cfg.Location(), a.QuietHours(), logger)
		stopWorker, err := worker.Start(redisOpt, handlers, logger)
		if err != nil {
			logger.Error("Worker failed to start", "error", err)
			os.Exit(1)
		}
		defer stopWorker()

		stopScheduler, err := worker.StartScheduler(redisOpt, worker.Schedules{
			Location: cfg.Location(),
			Sweep:    cfg.TrackerSchedule,
			Daily:    cfg.DailySchedule,
			Contests: cfg.ContestSchedule,
			Ratings:  cfg.RatingSchedule,
		}, logger)
		if err != nil {
			logger.Error("Scheduler failed to start", "error", err)
			os.Exit(1)
		}
		defer stopScheduler()
	}

	// 5. Router and HTTP server
	router := api.NewRouter(api.Handlers{
		Users:       handler.NewUserHandler(a.Stats, a.Roster),
		Submissions: handler.NewSubmissionHandler(a.Submissions, a.Stats, cfg.Location()),
		Contests:    handler.NewContestHandler(a.ContestSvc, a.Freshness),
		Admin:       handler.NewAdminHandler(a.Auth, a.Roster, a.Tracker, enqueuer),
	}, cfg.CORSAllowOrigins, logger)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Could not listen", "port", cfg.APIPort, "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
	logger.Info("Server and worker stopped")
}
