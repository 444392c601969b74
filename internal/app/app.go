// Package app wires repositories, services and the sweeper for the binaries.
package app

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"tracking_cf/internal/app/service"
	"tracking_cf/internal/app/worker"
	"tracking_cf/internal/domain/repository"
	"tracking_cf/internal/platform/codeforces"
	"tracking_cf/internal/platform/config"
	"tracking_cf/internal/platform/database"
	"tracking_cf/internal/platform/queue"

	"github.com/redis/go-redis/v9"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *sql.DB
	Redis  *redis.Client

	Users    repository.UserRepository
	Meta     repository.MetadataRepository
	Runs     repository.RunRepository
	Admins   repository.AdminRepository
	Contests repository.ContestRepository

	Stats       *service.StatsService
	Tracker     *service.TrackerService
	Roster      *service.RosterService
	ContestSvc  *service.ContestService
	Ratings     *service.RatingService
	Submissions *service.SubmissionService
	Auth        *service.AuthService
	Freshness   *service.MetaService
	Sweeper     *worker.Sweeper
}

// New connects to postgres and, when reachable, redis. Without redis the
// locks fall back to an in-process implementation unless requireRedis is set.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, requireRedis bool) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	judge, err := codeforces.NewClient(codeforces.Options{
		BaseURL:   cfg.CFBaseURL,
		APIKey:    cfg.CFAPIKey,
		APISecret: cfg.CFAPISecret,
		Timeout:   cfg.CFTimeout,
		Logger:    logger.With("component", "codeforces"),
	})
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(ctx, cfg.DBConnStr)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, DB: db}

	var locker service.HandleLocker
	rdb, err := queue.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	switch {
	case err == nil:
		a.Redis = rdb
		locker = queue.NewRedisLocker(rdb, time.Duration(cfg.LockTTLSeconds)*time.Second, logger)
	case requireRedis:
		db.Close()
		return nil, err
	default:
		logger.Warn("Redis unavailable, using in-process locks", "error", err)
		locker = queue.NewLocalLocker()
	}

	loc := cfg.Location()
	a.Users = repository.NewPgUserRepository(db)
	subs := repository.NewPgSubmissionRepository(db)
	statsRepo := repository.NewPgStatsRepository(db)
	a.Contests = repository.NewPgContestRepository(db)
	a.Meta = repository.NewPgMetadataRepository(db)
	a.Runs = repository.NewPgRunRepository(db)
	a.Admins = repository.NewPgAdminRepository(db)
	txm := repository.NewTxManager(db)

	a.Stats = service.NewStatsService(a.Users, subs, statsRepo, loc)
	a.Tracker = service.NewTrackerService(judge, a.Users, subs, a.Stats, txm, locker, cfg.Cutoff(), logger)
	a.Roster = service.NewRosterService(judge, a.Users, statsRepo, txm, a.Tracker, logger)
	a.ContestSvc = service.NewContestService(judge, a.Contests, a.Meta, txm, logger)
	a.Ratings = service.NewRatingService(judge, a.Users, a.Contests, a.Meta, logger)
	a.Submissions = service.NewSubmissionService(a.Users, subs)
	a.Auth = service.NewAuthService(a.Admins)
	a.Freshness = service.NewMetaService(a.Meta, a.Runs)
	a.Sweeper = worker.NewSweeper(a.Tracker, a.Stats, a.Users, a.Meta, a.Runs, locker, worker.SweeperOptions{
		LockKey:      cfg.SweepLockKey,
		Pacing:       cfg.PacingDelay,
		AvatarPacing: cfg.AvatarPacing,
	}, logger)
	return a, nil
}

func (a *App) Close() {
	if a.Redis != nil {
		queue.Close()
	}
	database.Close()
}

// QuietHours returns the configured local window that skips scheduled sweeps.
func (a *App) QuietHours() worker.QuietHours {
	return worker.QuietHours{Start: a.Config.QuietHourStart, End: a.Config.QuietHourEnd}
}
