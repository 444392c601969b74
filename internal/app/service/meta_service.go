package service

import (
	"context"
	"errors"
	"time"

	"tracking_cf/internal/common"
	"tracking_cf/internal/domain/model"
	"tracking_cf/internal/domain/repository"
)

type MetaService struct {
	metaRepo repository.MetadataRepository
	runRepo  repository.RunRepository
}

func NewMetaService(metaRepo repository.MetadataRepository, runRepo repository.RunRepository) *MetaService {
	return &MetaService{metaRepo: metaRepo, runRepo: runRepo}
}

// Freshness reports when the background passes last completed.
func (s *MetaService) Freshness(ctx context.Context) (*model.Freshness, error) {
	out := &model.Freshness{}
	var err error
	if out.LastTrackerRun, err = s.timestamp(ctx, model.MetaLastTrackerRun); err != nil {
		return nil, err
	}
	if out.LastContestUpdate, err = s.timestamp(ctx, model.MetaLastContestUpdate); err != nil {
		return nil, err
	}
	if s.runRepo != nil {
		run, err := s.runRepo.Latest(ctx)
		switch {
		case err == nil:
			out.LastRun = run
		case !errors.Is(err, common.ErrNotFound):
			return nil, err
		}
	}
	return out, nil
}

func (s *MetaService) timestamp(ctx context.Context, key string) (*time.Time, error) {
	raw, err := s.metaRepo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, nil
	}
	return &t, nil
}
