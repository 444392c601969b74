package service

import (
	"context"
	"time"

	"tracking_cf/internal/platform/codeforces"
)

// JudgeClient is the subset of the Codeforces API the services use.
type JudgeClient interface {
	UserInfo(ctx context.Context, handle string) (*codeforces.User, error)
	UserStatus(ctx context.Context, handle string, from, count int) ([]codeforces.Submission, error)
	UserRating(ctx context.Context, handle string) ([]codeforces.RatingChange, error)
	ContestList(ctx context.Context, gym bool) ([]codeforces.Contest, error)
	ContestStandings(ctx context.Context, contestID, from, count int) (*codeforces.Standings, error)
}

// HandleLocker provides per-handle mutual exclusion for ingestion.
type HandleLocker interface {
	// TryLock returns ok=false without blocking when key is already held.
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
}

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

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
