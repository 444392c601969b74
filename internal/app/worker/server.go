package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tracking_cf/internal/app/service"
	"tracking_cf/internal/domain/model"

	"github.com/hibiken/asynq"
)

type SweepRunner interface {
	IngestAll(ctx context.Context, trigger model.RunTrigger) (*SweepSummary, error)
	DailyMaintenance(ctx context.Context) (*MaintenanceSummary, error)
}

type ContestSyncer interface {
	SyncContests(ctx context.Context) (int, error)
}

type RatingRefresher interface {
	RefreshAll(ctx context.Context) (service.RatingRefreshSummary, error)
}

// QuietHours is a local [Start, End) hour window in which scheduled sweeps are skipped.
type QuietHours struct {
	Start, End int
}

func (q QuietHours) Contains(t time.Time) bool {
	h := t.Hour()
	switch {
	case q.Start == q.End:
		return false
	case q.Start < q.End:
		return h >= q.Start && h < q.End
	default:
		return h >= q.Start || h < q.End
	}
}

// Handlers binds task types to the tracker operations.
type Handlers struct {
	sweeper  SweepRunner
	contests ContestSyncer
	ratings  RatingRefresher
	loc      *time.Location
	quiet    QuietHours
	logger   *slog.Logger
	now      func() time.Time
}

func NewHandlers(sweeper SweepRunner, contests ContestSyncer, ratings RatingRefresher, loc *time.Location, quiet QuietHours, logger *slog.Logger) *Handlers {
	if loc == nil {
		loc = time.UTC
	}
	return &Handlers{sweeper: sweeper, contests: contests, ratings: ratings, loc: loc, quiet: quiet, logger: logger, now: time.Now}
}

func (h *Handlers) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskSweep, h.HandleSweep)
	mux.HandleFunc(TaskDailyStreak, h.HandleDaily)
	mux.HandleFunc(TaskContestsSync, h.HandleContestsSync)
	mux.HandleFunc(TaskRatingsRefresh, h.HandleRatingsRefresh)
	return mux
}

func (h *Handlers) HandleSweep(ctx context.Context, task *asynq.Task) error {
	payload := SweepPayload{Trigger: model.TriggerSchedule}
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}
	}

	if payload.Trigger == model.TriggerSchedule && h.quiet.Contains(h.now().In(h.loc)) {
		h.logger.Info("Skipping scheduled sweep during quiet hours", "start", h.quiet.Start, "end", h.quiet.End)
		return nil
	}

	_, err := h.sweeper.IngestAll(ctx, payload.Trigger)
	if errors.Is(err, ErrSweepInProgress) {
		h.logger.Info("Sweep already running elsewhere, skipping")
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

func (h *Handlers) HandleDaily(ctx context.Context, _ *asynq.Task) error {
	_, err := h.sweeper.DailyMaintenance(ctx)
	return err
}

func (h *Handlers) HandleContestsSync(ctx context.Context, _ *asynq.Task) error {
	_, err := h.contests.SyncContests(ctx)
	return err
}

// HandleRatingsRefresh syncs the contest list first so new contests have a row.
func (h *Handlers) HandleRatingsRefresh(ctx context.Context, _ *asynq.Task) error {
	if _, err := h.contests.SyncContests(ctx); err != nil {
		h.logger.Warn("Contest sync before rating refresh failed", "error", err)
	}
	_, err := h.ratings.RefreshAll(ctx)
	return err
}

// Start runs the asynq server in the background and returns its stop function.
func Start(opt asynq.RedisConnOpt, handlers *Handlers, logger *slog.Logger) (stop func(), err error) {
	srv := asynq.NewServer(opt, asynq.Config{
		// sweeps must never overlap
		Concurrency:     1,
		ShutdownTimeout: 30 * time.Second,
		ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger)),
		Logger:          &asynqLoggerAdapter{logger: logger},
	})
	if err := srv.Start(handlers.Mux()); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	logger.Info("Worker started", "concurrency", 1)
	return srv.Shutdown, nil
}

func makeErrorHandler(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		if errors.Is(err, ErrSweepInProgress) {
			return
		}
		logger.Error("Task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetry,
		)
	}
}
