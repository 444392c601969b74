package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tracking_cf/internal/app/service"
	"tracking_cf/internal/domain/model"
	"tracking_cf/internal/domain/repository"

	"github.com/google/uuid"
)

// ErrSweepInProgress is returned when another process holds the sweep lock.
var ErrSweepInProgress = errors.New("a roster sweep is already running")

type Ingester interface {
	IngestUser(ctx context.Context, handle string) service.IngestResult
	RefreshProfile(ctx context.Context, user *model.User) error
}

type StreakRecomputer interface {
	RecomputeStreak(ctx context.Context, userID int64) (service.StreakResult, error)
}

// Roster is the part of the user store the sweeper reads.
type Roster interface {
	ListEnabled(ctx context.Context) ([]model.User, error)
	ListWithActiveStreak(ctx context.Context) ([]model.User, error)
}

type SweepSummary struct {
	RunID          uuid.UUID              `json:"run_id"`
	Results        []service.IngestResult `json:"results"`
	NewSubmissions int                    `json:"new_submissions"`
	Errors         int                    `json:"errors"`
	Disabled       int                    `json:"disabled"`
}

type MaintenanceSummary struct {
	StreaksChecked    int `json:"streaks_checked"`
	StreaksReset      int `json:"streaks_reset"`
	ProfilesRefreshed int `json:"profiles_refreshed"`
	Errors            int `json:"errors"`
}

type SweeperOptions struct {
	LockKey      string
	Pacing       time.Duration
	AvatarPacing time.Duration
}

// Sweeper walks the roster one user at a time.
type Sweeper struct {
	tracker  Ingester
	streaks  StreakRecomputer
	roster   Roster
	metaRepo repository.MetadataRepository
	runRepo  repository.RunRepository
	locker   service.HandleLocker
	opts     SweeperOptions
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

func NewSweeper(
	tracker Ingester,
	streaks StreakRecomputer,
	roster Roster,
	metaRepo repository.MetadataRepository,
	runRepo repository.RunRepository,
	locker service.HandleLocker,
	opts SweeperOptions,
	logger *slog.Logger,
) *Sweeper {
	if opts.LockKey == "" {
		opts.LockKey = "tracker:sweep:lock"
	}
	return &Sweeper{
		tracker:  tracker,
		streaks:  streaks,
		roster:   roster,
		metaRepo: metaRepo,
		runRepo:  runRepo,
		locker:   locker,
		opts:     opts,
		logger:   logger,
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

// IngestAll runs one sequential sweep over the enabled roster. Per-user
// failures are counted in the summary and never abort the sweep.
func (s *Sweeper) IngestAll(ctx context.Context, trigger model.RunTrigger) (*SweepSummary, error) {
	unlock, ok, err := s.locker.TryLock(ctx, s.opts.LockKey)
	if err != nil {
		return nil, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		return nil, ErrSweepInProgress
	}
	defer unlock()

	users, err := s.roster.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	run := &model.TrackerRun{ID: uuid.New(), Trigger: trigger, StartedAt: s.now(), UsersTotal: len(users)}
	if err := s.runRepo.Create(ctx, run); err != nil {
		s.logger.Warn("Failed to record tracker run", "error", err)
	}
	s.logger.Info("Roster sweep started", "run_id", run.ID, "trigger", trigger, "users", len(users))

	summary := &SweepSummary{RunID: run.ID, Results: make([]service.IngestResult, 0, len(users))}
	var loopErr error
	for _, u := range users {
		if loopErr = ctx.Err(); loopErr != nil {
			break
		}
		res := s.tracker.IngestUser(ctx, u.Handle)
		summary.Results = append(summary.Results, res)
		summary.NewSubmissions += res.NewSubmissions
		switch {
		case res.Err != nil:
			summary.Errors++
			s.logger.Error("Ingestion failed", "handle", res.Handle, "error", res.Err)
		case res.Disabled:
			summary.Disabled++
		}
		if loopErr = s.sleep(ctx, s.opts.Pacing); loopErr != nil {
			break
		}
	}

	finished := s.now()
	run.FinishedAt = &finished
	run.NewSubmissions = summary.NewSubmissions
	run.ErrorCount = summary.Errors
	run.DisabledCount = summary.Disabled
	// provenance is written even when the sweep was cancelled
	bg := context.WithoutCancel(ctx)
	if err := s.runRepo.Finish(bg, run); err != nil {
		s.logger.Warn("Failed to finish tracker run", "run_id", run.ID, "error", err)
	}
	if err := s.metaRepo.Set(bg, model.MetaLastTrackerRun, finished.UTC().Format(time.RFC3339)); err != nil {
		s.logger.Warn("Failed to record last tracker run", "error", err)
	}

	s.logger.Info("Roster sweep finished",
		"run_id", run.ID,
		"users", len(summary.Results),
		"new_submissions", summary.NewSubmissions,
		"errors", summary.Errors,
		"disabled", summary.Disabled,
		"duration", finished.Sub(run.StartedAt),
	)
	return summary, loopErr
}

// DailyMaintenance recomputes streaks from full history and refreshes avatars.
// Every enabled user is recomputed, so a cache left behind by a failed write
// heals here even when no new submission arrives. Disabled users are
// included only while their stored streak is still non-zero.
func (s *Sweeper) DailyMaintenance(ctx context.Context) (*MaintenanceSummary, error) {
	summary := &MaintenanceSummary{}

	users, err := s.roster.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	active, err := s.roster.ListWithActiveStreak(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active streaks: %w", err)
	}

	for _, u := range streakCandidates(users, active) {
		summary.StreaksChecked++
		res, err := s.streaks.RecomputeStreak(ctx, u.ID)
		if err != nil {
			summary.Errors++
			s.logger.Error("Streak repair failed", "handle", u.Handle, "error", err)
			continue
		}
		if u.CurrentStreak > 0 && res.Streak == 0 {
			summary.StreaksReset++
		}
	}

	for i := range users {
		if err := s.tracker.RefreshProfile(ctx, &users[i]); err != nil {
			summary.Errors++
			s.logger.Warn("Avatar refresh failed", "handle", users[i].Handle, "error", err)
		} else {
			summary.ProfilesRefreshed++
		}
		if err := s.sleep(ctx, s.opts.AvatarPacing); err != nil {
			return summary, err
		}
	}

	if err := s.metaRepo.Set(ctx, model.MetaLastDailyMaintenance, s.now().UTC().Format(time.RFC3339)); err != nil {
		s.logger.Warn("Failed to record daily maintenance", "error", err)
	}
	s.logger.Info("Daily maintenance finished",
		"streaks_checked", summary.StreaksChecked,
		"streaks_reset", summary.StreaksReset,
		"profiles", summary.ProfilesRefreshed,
		"errors", summary.Errors,
	)
	return summary, nil
}

func streakCandidates(enabled, active []model.User) []model.User {
	seen := make(map[int64]bool, len(enabled))
	out := make([]model.User, 0, len(enabled)+len(active))
	for _, u := range enabled {
		seen[u.ID] = true
		out = append(out, u)
	}
	for _, u := range active {
		if !seen[u.ID] {
			seen[u.ID] = true
			out = append(out, u)
		}
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
