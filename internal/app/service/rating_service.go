package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"tracking_cf/internal/common"
	"tracking_cf/internal/domain/model"
	"tracking_cf/internal/domain/repository"
	"tracking_cf/internal/platform/codeforces"
)

const (
	ratingUserPacing     = 500 * time.Millisecond
	standingsPacing      = 200 * time.Millisecond
	ratingStatusPageSize = 5000
)

// RatingService builds each user's rated-contest history with per-problem verdicts.
type RatingService struct {
	judge       JudgeClient
	userRepo    repository.UserRepository
	contestRepo repository.ContestRepository
	metaRepo    repository.MetadataRepository
	logger      *slog.Logger
	sleep       sleepFunc
	now         func() time.Time
}

func NewRatingService(judge JudgeClient, userRepo repository.UserRepository, contestRepo repository.ContestRepository, metaRepo repository.MetadataRepository, logger *slog.Logger) *RatingService {
	return &RatingService{
		judge:       judge,
		userRepo:    userRepo,
		contestRepo: contestRepo,
		metaRepo:    metaRepo,
		logger:      logger,
		sleep:       sleepCtx,
		now:         time.Now,
	}
}

type RatingRefreshSummary struct {
	Users  int `json:"users"`
	Failed int `json:"failed"`
}

// RefreshAll rebuilds rating history for every enabled user, one at a time.
func (s *RatingService) RefreshAll(ctx context.Context) (RatingRefreshSummary, error) {
	var summary RatingRefreshSummary
	users, err := s.userRepo.ListEnabled(ctx)
	if err != nil {
		return summary, err
	}
	for i := range users {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := s.RefreshUser(ctx, &users[i]); err != nil {
			s.logger.Error("Rating history refresh failed", "handle", users[i].Handle, "error", err)
			summary.Failed++
		} else {
			summary.Users++
		}
		if err := s.sleep(ctx, ratingUserPacing); err != nil {
			return summary, err
		}
	}
	if err := s.metaRepo.Set(ctx, model.MetaLastRatingRefresh, s.now().UTC().Format(time.RFC3339)); err != nil {
		s.logger.Warn("Failed to record rating refresh time", "error", err)
	}
	s.logger.Info("Rating history refresh finished", "ok", summary.Users, "failed", summary.Failed)
	return summary, nil
}

func (s *RatingService) RefreshUser(ctx context.Context, user *model.User) error {
	changes, err := s.judge.UserRating(ctx, user.Handle)
	if err != nil {
		return fmt.Errorf("fetch rating changes: %w", err)
	}
	var history []model.RatingHistoryEntry
	if len(changes) > 0 {
		subs, err := s.judge.UserStatus(ctx, user.Handle, 1, ratingStatusPageSize)
		if err != nil {
			return fmt.Errorf("fetch submissions: %w", err)
		}
		problems, err := s.contestProblems(ctx, changes)
		if err != nil {
			return err
		}
		history = buildRatingHistory(changes, subs, problems)
	}
	if history == nil {
		history = []model.RatingHistoryEntry{}
	}

	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode rating history: %w", err)
	}
	if err := s.userRepo.SaveRatingHistory(ctx, user.ID, raw); err != nil {
		return fmt.Errorf("%w: save rating history: %w", common.ErrPersistence, err)
	}
	return nil
}

// contestProblems loads cached problem sets and fetches the missing ones from standings.
func (s *RatingService) contestProblems(ctx context.Context, changes []codeforces.RatingChange) (map[int][]model.ContestProblem, error) {
	byID := map[int]codeforces.RatingChange{}
	ids := make([]string, 0, len(changes))
	for _, c := range changes {
		if _, ok := byID[c.ContestID]; ok {
			continue
		}
		byID[c.ContestID] = c
		ids = append(ids, strconv.Itoa(c.ContestID))
	}

	cached, err := s.contestRepo.FindProblems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: load contest problems: %w", common.ErrPersistence, err)
	}

	out := make(map[int][]model.ContestProblem, len(byID))
	for _, id := range ids {
		contestID, _ := strconv.Atoi(id)
		if raw, ok := cached[id]; ok {
			var problems []model.ContestProblem
			if err := json.Unmarshal(raw, &problems); err == nil {
				out[contestID] = problems
				continue
			}
		}

		standings, err := s.judge.ContestStandings(ctx, contestID, 1, 1)
		if err != nil {
			s.logger.Warn("Failed to cache contest problems", "contest_id", contestID, "error", err)
			out[contestID] = nil
			continue
		}
		problems := make([]model.ContestProblem, 0, len(standings.Problems))
		for _, p := range standings.Problems {
			problems = append(problems, model.ContestProblem{Index: p.Index, Name: p.Name, Rating: p.Rating, Tags: p.Tags})
		}
		out[contestID] = problems

		raw, err := json.Marshal(problems)
		if err == nil {
			name := standings.Contest.Name
			if name == "" {
				name = byID[contestID].ContestName
			}
			var start *int32
			if standings.Contest.StartTimeSeconds != 0 {
				start = clampInt32(standings.Contest.StartTimeSeconds)
			}
			if err := s.contestRepo.SaveProblems(ctx, id, name, start, raw); err != nil {
				s.logger.Warn("Failed to store contest problems", "contest_id", contestID, "error", err)
			}
		}
		if err := s.sleep(ctx, standingsPacing); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func buildRatingHistory(changes []codeforces.RatingChange, subs []codeforces.Submission, problems map[int][]model.ContestProblem) []model.RatingHistoryEntry {
	// best verdict per contest and problem index; OK wins over anything else
	verdicts := map[int]map[string]string{}
	for _, sub := range subs {
		byIndex, ok := verdicts[sub.ContestID]
		if !ok {
			byIndex = map[string]string{}
			verdicts[sub.ContestID] = byIndex
		}
		current, seen := byIndex[sub.Problem.Index]
		if !seen || (sub.Verdict == codeforces.VerdictOK && current != codeforces.VerdictOK) {
			byIndex[sub.Problem.Index] = sub.Verdict
		}
	}

	history := make([]model.RatingHistoryEntry, 0, len(changes))
	for _, c := range changes {
		entry := model.RatingHistoryEntry{
			ContestID:               c.ContestID,
			ContestName:             c.ContestName,
			Rank:                    c.Rank,
			OldRating:               c.OldRating,
			NewRating:               c.NewRating,
			RatingUpdateTimeSeconds: c.RatingUpdateTimeSeconds,
			Problems:                []model.ProblemResult{},
		}
		for _, p := range problems[c.ContestID] {
			res := model.ProblemResult{Index: p.Index, Name: p.Name, Rating: p.Rating, Tags: p.Tags}
			if v, ok := verdicts[c.ContestID][p.Index]; ok {
				verdict := v
				res.Verdict = &verdict
				res.Attempted = true
			}
			entry.Problems = append(entry.Problems, res)
		}
		sort.SliceStable(entry.Problems, func(i, j int) bool {
			a, b := entry.Problems[i].Index, entry.Problems[j].Index
			if len(a) != len(b) {
				return len(a) < len(b)
			}
			return a < b
		})
		history = append(history, entry)
	}
	return history
}
