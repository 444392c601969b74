package service

import (
	"context"
	"testing"
	"time"

	"tracking_cf/internal/common"
	"tracking_cf/internal/domain/model"

	"github.com/google/uuid"
)

type memRuns struct{ runs []model.TrackerRun }

func (r *memRuns) Create(_ context.Context, run *model.TrackerRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	r.runs = append(r.runs, *run)
	return nil
}

func (r *memRuns) Finish(_ context.Context, run *model.TrackerRun) error {
	for i := range r.runs {
		if r.runs[i].ID == run.ID {
			r.runs[i] = *run
			return nil
		}
	}
	return common.ErrNotFound
}

func (r *memRuns) Latest(context.Context) (*model.TrackerRun, error) {
	if len(r.runs) == 0 {
		return nil, common.ErrNotFound
	}
	run := r.runs[len(r.runs)-1]
	return &run, nil
}

func TestMetaService_Freshness(t *testing.T) {
	store := newMemStore()
	runs := &memRuns{}
	svc := NewMetaService(memMeta{store}, runs)

	got, err := svc.Freshness(context.Background())
	if err != nil {
		t.Fatalf("Freshness: %v", err)
	}
	if got.LastTrackerRun != nil || got.LastContestUpdate != nil || got.LastRun != nil {
		t.Fatalf("expected empty freshness, got %+v", got)
	}

	at := time.Date(2026, 1, 12, 15, 30, 0, 0, time.UTC)
	store.meta[model.MetaLastTrackerRun] = at.Format(time.RFC3339)
	store.meta[model.MetaLastContestUpdate] = "garbage"
	_ = runs.Create(context.Background(), &model.TrackerRun{Trigger: model.TriggerSchedule, StartedAt: at})

	got, err = svc.Freshness(context.Background())
	if err != nil {
		t.Fatalf("Freshness: %v", err)
	}
	if got.LastTrackerRun == nil || !got.LastTrackerRun.Equal(at) {
		t.Fatalf("last tracker run = %v", got.LastTrackerRun)
	}
	if got.LastContestUpdate != nil {
		t.Fatalf("unparseable timestamp should be reported as missing")
	}
	if got.LastRun == nil || got.LastRun.Trigger != model.TriggerSchedule {
		t.Fatalf("last run = %+v", got.LastRun)
	}
}
