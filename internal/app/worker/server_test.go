package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"tracking_cf/internal/app/service"
	"tracking_cf/internal/domain/model"
	"tracking_cf/internal/platform/logging"

	"github.com/hibiken/asynq"
)

type fakeRunner struct {
	triggers []model.RunTrigger
	daily    int
	err      error
}

func (f *fakeRunner) IngestAll(_ context.Context, trigger model.RunTrigger) (*SweepSummary, error) {
	f.triggers = append(f.triggers, trigger)
	return &SweepSummary{}, f.err
}

func (f *fakeRunner) DailyMaintenance(context.Context) (*MaintenanceSummary, error) {
	f.daily++
	return &MaintenanceSummary{}, nil
}

type fakeContests struct{ calls int }

func (f *fakeContests) SyncContests(context.Context) (int, error) {
	f.calls++
	return 0, errors.New("contest.list unavailable")
}

type fakeRatings struct{ calls int }

func (f *fakeRatings) RefreshAll(context.Context) (service.RatingRefreshSummary, error) {
	f.calls++
	return service.RatingRefreshSummary{}, nil
}

func sweepTask(t *testing.T, trigger model.RunTrigger) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(SweepPayload{Trigger: trigger})
	if err != nil {
		t.Fatal(err)
	}
	return asynq.NewTask(TaskSweep, payload)
}

func newTestHandlers(runner *fakeRunner, hour int) (*Handlers, *fakeContests, *fakeRatings) {
	lima := time.FixedZone("lima", -5*3600)
	contests, ratings := &fakeContests{}, &fakeRatings{}
	h := NewHandlers(runner, contests, ratings, lima, QuietHours{Start: 3, End: 8}, logging.Discard())
	h.now = func() time.Time { return time.Date(2026, 1, 12, hour, 15, 0, 0, lima) }
	return h, contests, ratings
}

func TestHandleSweep_SkipsScheduledRunInQuietHours(t *testing.T) {
	runner := &fakeRunner{}
	h, _, _ := newTestHandlers(runner, 4)

	if err := h.HandleSweep(context.Background(), sweepTask(t, model.TriggerSchedule)); err != nil {
		t.Fatalf("HandleSweep: %v", err)
	}
	if len(runner.triggers) != 0 {
		t.Fatalf("scheduled sweep should be skipped at 04:15")
	}

	if err := h.HandleSweep(context.Background(), sweepTask(t, model.TriggerAdmin)); err != nil {
		t.Fatalf("HandleSweep: %v", err)
	}
	if len(runner.triggers) != 1 || runner.triggers[0] != model.TriggerAdmin {
		t.Fatalf("admin sweep should ignore quiet hours: %v", runner.triggers)
	}
}

func TestHandleSweep_RunsOutsideQuietHours(t *testing.T) {
	runner := &fakeRunner{}
	h, _, _ := newTestHandlers(runner, 8)

	if err := h.HandleSweep(context.Background(), asynq.NewTask(TaskSweep, nil)); err != nil {
		t.Fatalf("HandleSweep: %v", err)
	}
	if len(runner.triggers) != 1 || runner.triggers[0] != model.TriggerSchedule {
		t.Fatalf("expected one scheduled sweep, got %v", runner.triggers)
	}
}

func TestHandleSweep_TerminalErrorsSkipRetry(t *testing.T) {
	runner := &fakeRunner{err: ErrSweepInProgress}
	h, _, _ := newTestHandlers(runner, 12)

	err := h.HandleSweep(context.Background(), sweepTask(t, model.TriggerSchedule))
	if !errors.Is(err, asynq.SkipRetry) || !errors.Is(err, ErrSweepInProgress) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}

	err = h.HandleSweep(context.Background(), asynq.NewTask(TaskSweep, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("bad payload should not be retried: %v", err)
	}
}

func TestHandleRatingsRefresh_ContinuesAfterContestFailure(t *testing.T) {
	h, contests, ratings := newTestHandlers(&fakeRunner{}, 1)

	if err := h.HandleRatingsRefresh(context.Background(), asynq.NewTask(TaskRatingsRefresh, nil)); err != nil {
		t.Fatalf("HandleRatingsRefresh: %v", err)
	}
	if contests.calls != 1 || ratings.calls != 1 {
		t.Fatalf("contests=%d ratings=%d", contests.calls, ratings.calls)
	}
}

func TestQuietHours(t *testing.T) {
	cases := []struct {
		q    QuietHours
		hour int
		want bool
	}{
		{QuietHours{3, 8}, 2, false},
		{QuietHours{3, 8}, 3, true},
		{QuietHours{3, 8}, 7, true},
		{QuietHours{3, 8}, 8, false},
		{QuietHours{22, 2}, 23, true},
		{QuietHours{22, 2}, 1, true},
		{QuietHours{22, 2}, 12, false},
		{QuietHours{0, 0}, 0, false},
	}
	for _, c := range cases {
		at := time.Date(2026, 1, 12, c.hour, 0, 0, 0, time.UTC)
		if got := c.q.Contains(at); got != c.want {
			t.Errorf("%+v.Contains(%02d:00) = %v, want %v", c.q, c.hour, got, c.want)
		}
	}
}
