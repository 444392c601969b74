package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tracking_cf/internal/common"
	"tracking_cf/internal/domain/model"
	"tracking_cf/internal/domain/repository"
)

const (
	firstIngestTimeout = 90 * time.Second
	// left for writing the response before the caller's deadline
	responseMargin = 2 * time.Second
)

// RosterService manages which handles are tracked.
type RosterService struct {
	judge     JudgeClient
	userRepo  repository.UserRepository
	statsRepo repository.StatsRepository
	txm       repository.TxManager
	tracker   *TrackerService
	logger    *slog.Logger
}

func NewRosterService(judge JudgeClient, userRepo repository.UserRepository, statsRepo repository.StatsRepository, txm repository.TxManager, tracker *TrackerService, logger *slog.Logger) *RosterService {
	return &RosterService{judge: judge, userRepo: userRepo, statsRepo: statsRepo, txm: txm, tracker: tracker, logger: logger}
}

type CreateUserRequest struct {
	Handle string `json:"handle" validate:"required,min=3,max=24"`
}

type RenameUserRequest struct {
	NewHandle string `json:"new_handle" validate:"required,min=3,max=24"`
}

// FlagRequest sets a flag explicitly; an empty body toggles it.
type FlagRequest struct {
	Value *bool `json:"value"`
}

// CreateUser verifies handle on Codeforces, stores it and runs the first ingestion.
func (s *RosterService) CreateUser(ctx context.Context, handle string) (*model.User, IngestResult, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, IngestResult{}, fmt.Errorf("handle is required: %w", common.ErrBadRequest)
	}

	info, err := s.judge.UserInfo(ctx, handle)
	if err != nil {
		return nil, IngestResult{}, fmt.Errorf("verify %s on codeforces: %w", handle, err)
	}
	if _, err := s.userRepo.FindByHandle(ctx, info.Handle); err == nil {
		return nil, IngestResult{}, fmt.Errorf("user %q is already tracked: %w", info.Handle, common.ErrConflict)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, IngestResult{}, err
	}

	profile := profileFrom(info)
	user := &model.User{
		Handle:    info.Handle,
		Rating:    profile.Rating,
		Rank:      profile.Rank,
		AvatarURL: profile.AvatarURL,
		Enabled:   true,
	}
	err = s.txm.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := s.userRepo.Create(ctx, tx, user); err != nil {
			return err
		}
		return s.statsRepo.Init(ctx, tx, user.ID)
	})
	if err != nil {
		return nil, IngestResult{}, err
	}
	s.logger.Info("User added to roster", "handle", user.Handle, "id", user.ID)

	ictx, cancel := firstIngestContext(ctx)
	defer cancel()
	res := s.tracker.IngestUser(ictx, user.Handle)
	if res.Err != nil {
		s.logger.Warn("Initial ingestion failed, the next sweep will retry", "handle", user.Handle, "error", res.Err)
	}
	if fresh, err := s.userRepo.FindByID(ictx, user.ID); err == nil {
		user = fresh
	}
	return user, res, nil
}

// firstIngestContext detaches the first ingestion from the caller's
// cancellation and ends it before the caller's deadline, so a created user is
// always reported back even when the judge is slow.
func firstIngestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	budget := firstIngestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline) - responseMargin; left < budget {
			budget = left
		}
	}
	return context.WithTimeout(context.WithoutCancel(ctx), budget)
}

// RenameUser re-validates newHandle on Codeforces before renaming.
func (s *RosterService) RenameUser(ctx context.Context, oldHandle, newHandle string) (*model.User, error) {
	user, err := s.userRepo.FindByHandle(ctx, oldHandle)
	if err != nil {
		return nil, err
	}
	info, err := s.judge.UserInfo(ctx, strings.TrimSpace(newHandle))
	if err != nil {
		return nil, fmt.Errorf("verify %s on codeforces: %w", newHandle, err)
	}
	if other, err := s.userRepo.FindByHandle(ctx, info.Handle); err == nil && other.ID != user.ID {
		return nil, fmt.Errorf("handle %q is already tracked: %w", info.Handle, common.ErrConflict)
	}
	if err := s.userRepo.Rename(ctx, user.ID, info.Handle); err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateProfile(ctx, user.ID, profileFrom(info)); err != nil {
		s.logger.Warn("Failed to refresh profile after rename", "handle", info.Handle, "error", err)
	}
	s.logger.Info("User renamed", "from", user.Handle, "to", info.Handle)
	return s.userRepo.FindByID(ctx, user.ID)
}

func (s *RosterService) SetEnabled(ctx context.Context, handle string, enabled bool) (*model.User, error) {
	return s.updateFlag(ctx, handle, func(id int64) error { return s.userRepo.SetEnabled(ctx, id, enabled) })
}

func (s *RosterService) SetHidden(ctx context.Context, handle string, hidden bool) (*model.User, error) {
	return s.updateFlag(ctx, handle, func(id int64) error { return s.userRepo.SetHidden(ctx, id, hidden) })
}

// ToggleEnabled flips the enabled flag.
func (s *RosterService) ToggleEnabled(ctx context.Context, handle string) (*model.User, error) {
	user, err := s.userRepo.FindByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	return s.SetEnabled(ctx, user.Handle, !user.Enabled)
}

// ToggleHidden flips the leaderboard visibility flag.
func (s *RosterService) ToggleHidden(ctx context.Context, handle string) (*model.User, error) {
	user, err := s.userRepo.FindByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	return s.SetHidden(ctx, user.Handle, !user.IsHidden)
}

func (s *RosterService) updateFlag(ctx context.Context, handle string, apply func(id int64) error) (*model.User, error) {
	user, err := s.userRepo.FindByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	if err := apply(user.ID); err != nil {
		return nil, err
	}
	return s.userRepo.FindByID(ctx, user.ID)
}

func (s *RosterService) DeleteUser(ctx context.Context, handle string) error {
	user, err := s.userRepo.FindByHandle(ctx, handle)
	if err != nil {
		return err
	}
	if err := s.userRepo.Delete(ctx, user.ID); err != nil {
		return err
	}
	s.logger.Info("User removed from roster", "handle", user.Handle)
	return nil
}

func (s *RosterService) ListAll(ctx context.Context) ([]model.User, error) {
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

func (s *RosterService) GetUser(ctx context.Context, handle string) (*model.User, error) {
	return s.userRepo.FindByHandle(ctx, handle)
}
