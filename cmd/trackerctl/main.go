// Command trackerctl runs one-off tracker operations against the configured database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tracking_cf/internal/app"
	"tracking_cf/internal/app/service"
	"tracking_cf/internal/domain/model"
	"tracking_cf/internal/domain/repository"
	"tracking_cf/internal/platform/config"
	"tracking_cf/internal/platform/database"
	"tracking_cf/internal/platform/logging"
)

type command struct {
	args  string
	nargs int
	// needsJudge commands get the full App; the rest only a database handle.
	needsJudge bool
	run        func(ctx context.Context, env *env, args []string) (any, error)
}

type env struct {
	cfg    *config.Config
	logger *slog.Logger
	app    *app.App
	auth   *service.AuthService
}

var commands = map[string]command{
	"migrate": {nargs: 0, run: func(ctx context.Context, e *env, _ []string) (any, error) {
		return "migrations applied", nil
	}},
	"admin-create": {args: "<username> <password>", nargs: 2, run: func(ctx context.Context, e *env, a []string) (any, error) {
		return e.auth.CreateAdmin(ctx, a[0], a[1])
	}},
	"admin-delete": {args: "<username>", nargs: 1, run: func(ctx context.Context, e *env, a []string) (any, error) {
		return "admin deleted", e.auth.DeleteAdmin(ctx, a[0])
	}},
	"run": {nargs: 0, needsJudge: true, run: func(ctx context.Context, e *env, _ []string) (any, error) {
		return e.app.Sweeper.IngestAll(ctx, model.TriggerCLI)
	}},
	"daily": {nargs: 0, needsJudge: true, run: func(ctx context.Context, e *env, _ []string) (any, error) {
		return e.app.Sweeper.DailyMaintenance(ctx)
	}},
	"track": {args: "<handle>", nargs: 1, needsJudge: true, run: func(ctx context.Context, e *env, a []string) (any, error) {
		res := e.app.Tracker.IngestUser(ctx, a[0])
		return res, res.Err
	}},
	"user-add": {args: "<handle>", nargs: 1, needsJudge: true, run: func(ctx context.Context, e *env, a []string) (any, error) {
		user, res, err := e.app.Roster.CreateUser(ctx, a[0])
		if err != nil {
			return nil, err
		}
		return map[string]any{"user": user, "ingestion": res}, nil
	}},
	"user-rename": {args: "<old> <new>", nargs: 2, needsJudge: true, run: func(ctx context.Context, e *env, a []string) (any, error) {
		return e.app.Roster.RenameUser(ctx, a[0], a[1])
	}},
	"user-toggle": {args: "<handle>", nargs: 1, needsJudge: true, run: func(ctx context.Context, e *env, a []string) (any, error) {
		return e.app.Roster.ToggleEnabled(ctx, a[0])
	}},
	"user-delete": {args: "<handle>", nargs: 1, needsJudge: true, run: func(ctx context.Context, e *env, a []string) (any, error) {
		return "user deleted", e.app.Roster.DeleteUser(ctx, a[0])
	}},
	"contests-sync": {nargs: 0, needsJudge: true, run: func(ctx context.Context, e *env, _ []string) (any, error) {
		n, err := e.app.ContestSvc.SyncContests(ctx)
		return map[string]int{"contests": n}, err
	}},
	"ratings-refresh": {nargs: 0, needsJudge: true, run: func(ctx context.Context, e *env, _ []string) (any, error) {
		return e.app.Ratings.RefreshAll(ctx)
	}},
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: trackerctl <command> [args]")
	fmt.Fprintln(os.Stderr, "commands:")
	for _, name := range []string{"migrate", "admin-create", "admin-delete", "run", "daily", "track", "user-add", "user-rename", "user-toggle", "user-delete", "contests-sync", "ratings-refresh"} {
		fmt.Fprintf(os.Stderr, "  %-16s %s\n", name, commands[name].args)
	}
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}
	name, args := flag.Arg(0), flag.Args()[1:]
	cmd, ok := commands[name]
	if !ok || len(args) != cmd.nargs {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := execute(ctx, cfg, logger, cmd, args)
	if err != nil {
		logger.Error("Command failed", "command", name, "error", err)
		if errors.Is(err, config.ErrNotConfigured) {
			os.Exit(3)
		}
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("Failed to write output", "error", err)
		os.Exit(1)
	}
}

func execute(ctx context.Context, cfg *config.Config, logger *slog.Logger, cmd command, args []string) (any, error) {
	e := &env{cfg: cfg, logger: logger}
	if cmd.needsJudge {
		a, err := app.New(ctx, cfg, logger, false)
		if err != nil {
			return nil, err
		}
		defer a.Close()
		e.app = a
		e.auth = a.Auth
		if err := database.RunMigrations(a.DB); err != nil {
			return nil, err
		}
		return cmd.run(ctx, e, args)
	}

	db, err := database.Connect(ctx, cfg.DBConnStr)
	if err != nil {
		return nil, err
	}
	defer database.Close()
	if err := database.RunMigrations(db); err != nil {
		return nil, err
	}
	e.auth = service.NewAuthService(repository.NewPgAdminRepository(db))
	return cmd.run(ctx, e, args)
}
