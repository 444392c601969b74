package service

import (
	"context"
	"fmt"

	"tracking_cf/internal/common"
	"tracking_cf/internal/domain/model"
	"tracking_cf/internal/domain/repository"
)

const (
	DefaultPageLimit   = 100
	MaxPageLimit       = 500
	DefaultLatestLimit = 10
)

// SubmissionService serves the read side of stored submissions.
type SubmissionService struct {
	userRepo       repository.UserRepository
	submissionRepo repository.SubmissionRepository
}

func NewSubmissionService(userRepo repository.UserRepository, subRepo repository.SubmissionRepository) *SubmissionService {
	return &SubmissionService{userRepo: userRepo, submissionRepo: subRepo}
}

func (s *SubmissionService) ListSubmissions(ctx context.Context, handle string, f model.SubmissionFilter) (*model.SubmissionPage, error) {
	if f.RatingMin != nil && f.RatingMax != nil && *f.RatingMin > *f.RatingMax {
		return nil, fmt.Errorf("ratingMin is greater than ratingMax: %w", common.ErrBadRequest)
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return nil, fmt.Errorf("dateFrom is after dateTo: %w", common.ErrBadRequest)
	}
	switch f.SortBy {
	case "":
		f.SortBy = model.SortBySubmissionTime
	case model.SortBySubmissionTime, model.SortByRating, model.SortByContestID:
	default:
		return nil, fmt.Errorf("unknown sort column %q: %w", f.SortBy, common.ErrBadRequest)
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	f.Limit = min(f.Limit, MaxPageLimit)
	f.Offset = max(f.Offset, 0)

	user, err := s.userRepo.FindByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	subs, total, err := s.submissionRepo.Find(ctx, user.ID, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions for %s: %w", user.Handle, err)
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	return &model.SubmissionPage{
		Submissions: subs,
		Total:       total,
		Limit:       f.Limit,
		Offset:      f.Offset,
		HasMore:     f.Offset+len(subs) < total,
	}, nil
}

func (s *SubmissionService) Latest(ctx context.Context, handle string, limit int) ([]model.Submission, error) {
	if limit <= 0 {
		limit = DefaultLatestLimit
	}
	limit = min(limit, MaxPageLimit)
	user, err := s.userRepo.FindByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	subs, err := s.submissionRepo.Latest(ctx, user.ID, limit)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	return subs, nil
}
