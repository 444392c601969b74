package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"tracking_cf/internal/common"
	"tracking_cf/internal/domain/model"
	"tracking_cf/internal/domain/repository"
)

type StatsService struct {
	userRepo  repository.UserRepository
	subRepo   repository.SubmissionRepository
	statsRepo repository.StatsRepository
	loc       *time.Location
	now       func() time.Time
}

func NewStatsService(userRepo repository.UserRepository, subRepo repository.SubmissionRepository, statsRepo repository.StatsRepository, loc *time.Location) *StatsService {
	if loc == nil {
		loc = time.UTC
	}
	return &StatsService{userRepo: userRepo, subRepo: subRepo, statsRepo: statsRepo, loc: loc, now: time.Now}
}

// RecomputeScore rebuilds the bucket cache for one user from all of its submissions.
func (s *StatsService) RecomputeScore(ctx context.Context, userID int64) (ScoreSummary, error) {
	ratings, err := s.subRepo.ListRatings(ctx, userID)
	if err != nil {
		return ScoreSummary{}, fmt.Errorf("%w: list ratings: %w", common.ErrPersistence, err)
	}
	summary := ComputeScore(ratings)
	if err := s.statsRepo.Upsert(ctx, summary.toStats(userID)); err != nil {
		return ScoreSummary{}, fmt.Errorf("%w: save stats: %w", common.ErrPersistence, err)
	}
	return summary, nil
}

// RecomputeStreak rebuilds the streak from the full submission history.
func (s *StatsService) RecomputeStreak(ctx context.Context, userID int64) (StreakResult, error) {
	instants, err := s.subRepo.ListTimes(ctx, userID)
	if err != nil {
		return StreakResult{}, fmt.Errorf("%w: list submission times: %w", common.ErrPersistence, err)
	}
	res := ComputeStreak(instants, s.loc, s.now())
	if err := s.userRepo.UpdateStreak(ctx, userID, res.Streak, res.LastDate); err != nil {
		return StreakResult{}, fmt.Errorf("%w: save streak: %w", common.ErrPersistence, err)
	}
	return res, nil
}

func (s *StatsService) DetailedStats(ctx context.Context, handle string) (*model.DetailedStats, error) {
	user, err := s.userRepo.FindByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	subs, err := s.subRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	out := buildDetailedStats(subs, s.loc)

	summary, err := s.statsRepo.FindByUserID(ctx, user.ID)
	switch {
	case err == nil:
		out.Summary = summary
	case !errors.Is(err, common.ErrNotFound):
		return nil, err
	}
	return out, nil
}

const topTagLimit = 10

func buildDetailedStats(subs []model.Submission, loc *time.Location) *model.DetailedStats {
	bandOrder := []Band{BandUnrated, Band800to900, Band1000, Band1100, Band1200Plus, BandNone}
	bandCounts := make(map[Band]int)
	daily := make(map[string]int)
	tags := make(map[string]int)

	for _, sub := range subs {
		b := ScoreBand(sub.Rating)
		bandCounts[b]++
		daily[sub.SubmissionTime.In(loc).Format(time.DateOnly)] += b.Weight()
		for _, tag := range sub.Tags {
			tags[tag]++
		}
	}

	out := &model.DetailedStats{
		RatingDistribution: []model.CategoryCount{},
		Progress:           []model.DailyScore{},
		TopTags:            []model.TagCount{},
	}
	for _, b := range bandOrder {
		if n := bandCounts[b]; n > 0 {
			out.RatingDistribution = append(out.RatingDistribution, model.CategoryCount{Category: b.Label(), Count: n})
		}
	}
	for d, score := range daily {
		out.Progress = append(out.Progress, model.DailyScore{Day: d, Score: score})
	}
	sort.Slice(out.Progress, func(i, j int) bool { return out.Progress[i].Day < out.Progress[j].Day })

	for tag, n := range tags {
		out.TopTags = append(out.TopTags, model.TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out.TopTags, func(i, j int) bool {
		if out.TopTags[i].Count != out.TopTags[j].Count {
			return out.TopTags[i].Count > out.TopTags[j].Count
		}
		return out.TopTags[i].Tag < out.TopTags[j].Tag
	})
	if len(out.TopTags) > topTagLimit {
		out.TopTags = out.TopTags[:topTagLimit]
	}
	return out
}

// PeriodStart returns the lower bound for a leaderboard period, nil for "all".
func PeriodStart(period model.LeaderboardPeriod, now time.Time, loc *time.Location) (*time.Time, error) {
	local := now.In(loc)
	var from time.Time
	switch period {
	case model.PeriodAll, "":
		return nil, nil
	case model.PeriodWeek:
		from = now.Add(-7 * 24 * time.Hour)
	case model.PeriodMonth:
		from = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	case model.PeriodYear:
		from = time.Date(local.Year(), time.January, 1, 0, 0, 0, 0, loc)
	default:
		return nil, fmt.Errorf("unknown period %q: %w", period, common.ErrBadRequest)
	}
	from = from.UTC()
	return &from, nil
}

// Leaderboard ranks visible users by weighted score within period.
func (s *StatsService) Leaderboard(ctx context.Context, period model.LeaderboardPeriod) ([]model.LeaderboardEntry, error) {
	since, err := PeriodStart(period, s.now(), s.loc)
	if err != nil {
		return nil, err
	}
	entries, err := s.userRepo.Leaderboard(ctx, since)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		e := &entries[i]
		e.TotalScore = ScoreFromCounts(e.CountNoRating, e.Count800900, e.Count1000, e.Count1100, e.Count1200Plus)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		return entries[i].Handle < entries[j].Handle
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	return entries, nil
}
