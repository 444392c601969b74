package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tracking_cf/internal/common"
	"tracking_cf/internal/domain/model"
	"tracking_cf/internal/domain/repository"
	"tracking_cf/internal/platform/codeforces"
)

const (
	backfillPageSize    = 500
	incrementalPageSize = 100
)

// IngestResult is the outcome of one ingestion. A disabled user is not an error.
type IngestResult struct {
	Handle         string
	NewSubmissions int
	Disabled       bool
	Err            error
}

func (r IngestResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Handle         string `json:"handle"`
		NewSubmissions int    `json:"new_submissions"`
		Disabled       bool   `json:"disabled,omitempty"`
		Error          string `json:"error,omitempty"`
	}{Handle: r.Handle, NewSubmissions: r.NewSubmissions, Disabled: r.Disabled}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

type TrackerService struct {
	judge    JudgeClient
	userRepo repository.UserRepository
	subRepo  repository.SubmissionRepository
	stats    *StatsService
	txm      repository.TxManager
	locker   HandleLocker
	cutoff   time.Time
	logger   *slog.Logger
	now      func() time.Time
}

func NewTrackerService(
	judge JudgeClient,
	userRepo repository.UserRepository,
	subRepo repository.SubmissionRepository,
	stats *StatsService,
	txm repository.TxManager,
	locker HandleLocker,
	cutoff time.Time,
	logger *slog.Logger,
) *TrackerService {
	return &TrackerService{
		judge:    judge,
		userRepo: userRepo,
		subRepo:  subRepo,
		stats:    stats,
		txm:      txm,
		locker:   locker,
		cutoff:   cutoff,
		logger:   logger,
		now:      time.Now,
	}
}

func handleLockKey(handle string) string {
	return "tracker:user:" + strings.ToLower(handle)
}

// IngestUser pulls recent submissions for handle and merges them into the store.
func (s *TrackerService) IngestUser(ctx context.Context, handle string) IngestResult {
	res := IngestResult{Handle: handle}

	unlock, ok, err := s.locker.TryLock(ctx, handleLockKey(handle))
	if err != nil {
		res.Err = fmt.Errorf("%w: %s: %w", common.ErrJobLockFailed, handle, err)
		return res
	}
	if !ok {
		res.Err = fmt.Errorf("%w: %s is already being ingested", common.ErrJobLockFailed, handle)
		return res
	}
	defer unlock()

	user, err := s.userRepo.FindByHandle(ctx, handle)
	if err != nil {
		res.Err = fmt.Errorf("load user %s: %w", handle, err)
		return res
	}
	res.Handle = user.Handle

	info, err := s.judge.UserInfo(ctx, user.Handle)
	switch {
	case errors.Is(err, codeforces.ErrHandleNotFound):
		return s.disable(ctx, user, res, err)
	case err != nil:
		s.logger.Warn("Profile refresh failed, continuing with submissions", "handle", user.Handle, "error", err)
	default:
		if err := s.userRepo.UpdateProfile(ctx, user.ID, profileFrom(info)); err != nil {
			s.logger.Warn("Failed to save profile", "handle", user.Handle, "error", err)
		}
	}

	count := incrementalPageSize
	if user.LastSubmissionTime == nil {
		count = backfillPageSize
	}
	events, err := s.judge.UserStatus(ctx, user.Handle, 1, count)
	if err != nil {
		if errors.Is(err, codeforces.ErrHandleNotFound) {
			return s.disable(ctx, user, res, err)
		}
		res.Err = fmt.Errorf("fetch submissions for %s: %w", user.Handle, err)
		return res
	}

	batch := NormalizeSubmissions(events, s.cutoff)
	inserted, err := s.merge(ctx, user.ID, batch)
	if err != nil {
		res.Err = err
		return res
	}
	res.NewSubmissions = inserted

	if inserted == 0 && !derivedBehind(user) {
		return res
	}
	if err := s.refreshDerived(ctx, user.ID); err != nil {
		res.Err = err
		return res
	}
	if inserted > 0 {
		s.logger.Info("Ingested new submissions", "handle", user.Handle, "new", inserted, "fetched", len(events))
	} else {
		s.logger.Info("Rebuilt stale score and streak", "handle", user.Handle)
	}
	return res
}

// derivedBehind reports whether the score and streak caches predate the
// stored cursor, which happens when a previous refresh failed after commit.
func derivedBehind(user *model.User) bool {
	if user.LastSubmissionTime == nil {
		return false
	}
	return user.LastUpdated == nil || user.LastUpdated.Before(*user.LastSubmissionTime)
}

// merge inserts batch and advances the cursor in one transaction, so the
// cursor never points past uncommitted rows.
func (s *TrackerService) merge(ctx context.Context, userID int64, batch []model.Submission) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	var inserted int
	err := s.txm.WithinTx(ctx, func(tx *sql.Tx) error {
		n, err := s.subRepo.BulkInsertIgnore(ctx, tx, userID, batch)
		if err != nil {
			return err
		}
		inserted = n
		if n == 0 {
			return nil
		}
		return s.userRepo.AdvanceCursor(ctx, tx, userID, latestSubmission(batch))
	})
	if err != nil {
		return 0, fmt.Errorf("%w: merge submissions: %w", common.ErrPersistence, err)
	}
	return inserted, nil
}

func (s *TrackerService) refreshDerived(ctx context.Context, userID int64) error {
	if _, err := s.stats.RecomputeScore(ctx, userID); err != nil {
		return err
	}
	if _, err := s.stats.RecomputeStreak(ctx, userID); err != nil {
		return err
	}
	if err := s.userRepo.TouchLastUpdated(ctx, userID, s.now()); err != nil {
		return fmt.Errorf("%w: touch last_updated: %w", common.ErrPersistence, err)
	}
	return nil
}

func (s *TrackerService) disable(ctx context.Context, user *model.User, res IngestResult, cause error) IngestResult {
	s.logger.Warn("Handle no longer exists on Codeforces, disabling", "handle", user.Handle, "cause", cause)
	if err := s.userRepo.SetEnabled(ctx, user.ID, false); err != nil {
		res.Err = fmt.Errorf("%w: disable %s: %w", common.ErrPersistence, user.Handle, err)
		return res
	}
	res.Disabled = true
	return res
}

func latestSubmission(batch []model.Submission) time.Time {
	var latest time.Time
	for _, s := range batch {
		if s.SubmissionTime.After(latest) {
			latest = s.SubmissionTime
		}
	}
	return latest
}

func profileFrom(info *codeforces.User) model.ProfileUpdate {
	var p model.ProfileUpdate
	if info.Rating != 0 {
		r := info.Rating
		p.Rating = &r
	}
	if info.Rank != "" {
		rank := info.Rank
		p.Rank = &rank
	}
	if avatar := avatarURL(info); avatar != "" {
		p.AvatarURL = &avatar
	}
	return p
}

func avatarURL(info *codeforces.User) string {
	avatar := info.Avatar
	if avatar == "" {
		avatar = info.TitlePhoto
	}
	switch {
	case strings.HasPrefix(avatar, "//"):
		return "https:" + avatar
	case strings.HasPrefix(avatar, "/"):
		return "https://codeforces.com" + avatar
	}
	return avatar
}

// RefreshProfile updates rating, rank and avatar without touching submissions.
func (s *TrackerService) RefreshProfile(ctx context.Context, user *model.User) error {
	info, err := s.judge.UserInfo(ctx, user.Handle)
	if err != nil {
		return fmt.Errorf("fetch profile for %s: %w", user.Handle, err)
	}
	if err := s.userRepo.UpdateProfile(ctx, user.ID, profileFrom(info)); err != nil {
		return fmt.Errorf("%w: save profile for %s: %w", common.ErrPersistence, user.Handle, err)
	}
	return nil
}
