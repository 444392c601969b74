package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tracking_cf/internal/common"
	"tracking_cf/internal/domain/model"

	"github.com/hibiken/asynq"
)

const (
	TaskSweep          = "tracker:sweep"
	TaskDailyStreak    = "streak:daily"
	TaskContestsSync   = "contests:sync"
	TaskRatingsRefresh = "ratings:refresh"
)

const (
	sweepTimeout = 25 * time.Minute
	dailyTimeout = 2 * time.Hour
)

type SweepPayload struct {
	Trigger model.RunTrigger `json:"trigger"`
}

func newSweepTask(trigger model.RunTrigger, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(SweepPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	opts = append([]asynq.Option{asynq.MaxRetry(0), asynq.Timeout(sweepTimeout)}, opts...)
	return asynq.NewTask(TaskSweep, payload, opts...), nil
}

// Enqueuer pushes on-demand tasks for the worker.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(opt asynq.RedisConnOpt) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(opt)}
}

func (e *Enqueuer) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// EnqueueSweep queues an out-of-schedule sweep. A sweep already waiting in the
// queue is reported as a conflict.
func (e *Enqueuer) EnqueueSweep(ctx context.Context, trigger model.RunTrigger) (string, error) {
	task, err := newSweepTask(trigger, asynq.Unique(sweepTimeout), asynq.Retention(24*time.Hour))
	if err != nil {
		return "", err
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return "", fmt.Errorf("%w: a sweep is already queued", common.ErrConflict)
		}
		return "", fmt.Errorf("enqueue sweep: %w", err)
	}
	return info.ID, nil
}
