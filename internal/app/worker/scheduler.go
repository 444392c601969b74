package worker

import (
	"fmt"
	"log/slog"
	"time"

	"tracking_cf/internal/domain/model"

	"github.com/hibiken/asynq"
)

type Schedules struct {
	Location *time.Location
	Sweep    string
	Daily    string
	Contests string
	Ratings  string
}

// StartScheduler registers the periodic tasks and returns a stop function.
func StartScheduler(opt asynq.RedisConnOpt, schedules Schedules, logger *slog.Logger) (stop func(), err error) {
	loc := schedules.Location
	if loc == nil {
		loc = time.UTC
	}
	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: loc,
		LogLevel: asynq.InfoLevel,
		Logger:   &asynqLoggerAdapter{logger: logger},
	})

	sweep, err := newSweepTask(model.TriggerSchedule, asynq.Unique(sweepTimeout))
	if err != nil {
		return nil, err
	}
	entries := []struct {
		spec string
		task *asynq.Task
	}{
		{schedules.Sweep, sweep},
		{schedules.Daily, dailyTask(TaskDailyStreak)},
		{schedules.Contests, dailyTask(TaskContestsSync)},
		{schedules.Ratings, dailyTask(TaskRatingsRefresh)},
	}
	for _, e := range entries {
		if e.spec == "" {
			continue
		}
		id, err := scheduler.Register(e.spec, e.task)
		if err != nil {
			return nil, fmt.Errorf("failed to register %s schedule %q: %w", e.task.Type(), e.spec, err)
		}
		logger.Info("Scheduled task", "task_type", e.task.Type(), "schedule", e.spec, "entry_id", id)
	}

	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}
	logger.Info("Scheduler started", "timezone", loc.String())
	return scheduler.Shutdown, nil
}

func dailyTask(taskType string) *asynq.Task {
	return asynq.NewTask(taskType, nil,
		asynq.MaxRetry(2),
		asynq.Timeout(dailyTimeout),
		asynq.Retention(24*time.Hour),
		asynq.Unique(23*time.Hour),
	)
}
