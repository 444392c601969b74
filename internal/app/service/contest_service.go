package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"tracking_cf/internal/common"
	"tracking_cf/internal/domain/model"
	"tracking_cf/internal/domain/repository"
	"tracking_cf/internal/platform/codeforces"
)

type ContestService struct {
	judge       JudgeClient
	contestRepo repository.ContestRepository
	metaRepo    repository.MetadataRepository
	txm         repository.TxManager
	logger      *slog.Logger
	now         func() time.Time
}

func NewContestService(judge JudgeClient, contestRepo repository.ContestRepository, metaRepo repository.MetadataRepository, txm repository.TxManager, logger *slog.Logger) *ContestService {
	return &ContestService{judge: judge, contestRepo: contestRepo, metaRepo: metaRepo, txm: txm, logger: logger, now: time.Now}
}

type ContestListing struct {
	Contests   []model.Contest `json:"contests"`
	LastUpdate *time.Time      `json:"last_update"`
}

// SyncContests upserts the non-gym contest list. Cached problem sets are kept.
func (s *ContestService) SyncContests(ctx context.Context) (int, error) {
	list, err := s.judge.ContestList(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("fetch contest list: %w", err)
	}

	err = s.txm.WithinTx(ctx, func(tx *sql.Tx) error {
		for i := range list {
			c := contestFrom(&list[i])
			if err := s.contestRepo.Upsert(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: upsert contests: %w", common.ErrPersistence, err)
	}

	if err := s.metaRepo.Set(ctx, model.MetaLastContestUpdate, s.now().UTC().Format(time.RFC3339)); err != nil {
		s.logger.Warn("Failed to record contest sync time", "error", err)
	}
	s.logger.Info("Contests synced", "count", len(list))
	return len(list), nil
}

func (s *ContestService) ListContests(ctx context.Context) (*ContestListing, error) {
	contests, err := s.contestRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if contests == nil {
		contests = []model.Contest{}
	}
	out := &ContestListing{Contests: contests}
	if raw, err := s.metaRepo.Get(ctx, model.MetaLastContestUpdate); err == nil {
		if t, perr := time.Parse(time.RFC3339, raw); perr == nil {
			out.LastUpdate = &t
		}
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	return out, nil
}

func contestFrom(c *codeforces.Contest) *model.Contest {
	return &model.Contest{
		ID:                  strconv.FormatInt(c.ID, 10),
		Name:                c.Name,
		Type:                c.Type,
		Phase:               c.Phase,
		Frozen:              c.Frozen,
		DurationSeconds:     clampInt32(c.DurationSeconds),
		StartTimeSeconds:    clampInt32(c.StartTimeSeconds),
		RelativeTimeSeconds: clampInt32(c.RelativeTimeSeconds),
		Platform:            model.PlatformCodeforces,
	}
}

// clampInt32 saturates v into the int32 column range.
func clampInt32(v int64) *int32 {
	switch {
	case v > math.MaxInt32:
		v = math.MaxInt32
	case v < math.MinInt32:
		v = math.MinInt32
	}
	out := int32(v)
	return &out
}
