package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"tracking_cf/internal/common"
	"tracking_cf/internal/domain/model"
	"tracking_cf/internal/platform/codeforces"
)

// memStore is an in-memory stand-in for the postgres repositories.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	users     map[int64]*model.User
	subs      map[int64][]model.Submission
	stats     map[int64]*model.UserStats
	contests  map[string]*model.Contest
	meta      map[string]string
	insertErr error
	statsErr  error
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[int64]*model.User{},
		subs:     map[int64][]model.Submission{},
		stats:    map[int64]*model.UserStats{},
		contests: map[string]*model.Contest{},
		meta:     map[string]string{},
	}
}

func (m *memStore) addUser(handle string) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	u := &model.User{ID: m.nextID, Handle: handle, Enabled: true}
	m.users[u.ID] = u
	return u
}

func (m *memStore) user(id int64) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.users[id]
}

type memUsers struct{ *memStore }

func (r memUsers) Create(_ context.Context, _ *sql.Tx, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Handle, user.Handle) {
			return common.ErrConflict
		}
	}
	r.nextID++
	user.ID = r.nextID
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r memUsers) FindByID(_ context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memUsers) FindByHandle(_ context.Context, handle string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Handle, handle) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r memUsers) filter(keep func(*model.User) bool) []model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.User
	for _, u := range r.users {
		if keep(u) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

func (r memUsers) ListAll(context.Context) ([]model.User, error) {
	return r.filter(func(*model.User) bool { return true }), nil
}

func (r memUsers) ListEnabled(context.Context) ([]model.User, error) {
	return r.filter(func(u *model.User) bool { return u.Enabled }), nil
}

func (r memUsers) ListWithActiveStreak(context.Context) ([]model.User, error) {
	return r.filter(func(u *model.User) bool { return u.CurrentStreak > 0 }), nil
}

func (r memUsers) Leaderboard(_ context.Context, since *time.Time) ([]model.LeaderboardEntry, error) {
	var out []model.LeaderboardEntry
	for _, u := range r.filter(func(u *model.User) bool { return u.Enabled && !u.IsHidden }) {
		e := model.LeaderboardEntry{UserID: u.ID, Handle: u.Handle}
		r.mu.Lock()
		for _, s := range r.subs[u.ID] {
			if since != nil && s.SubmissionTime.Before(*since) {
				continue
			}
			e.TotalSubmissions++
			switch ScoreBand(s.Rating) {
			case BandUnrated:
				e.CountNoRating++
			case Band800to900:
				e.Count800900++
			case Band1000:
				e.Count1000++
			case Band1100:
				e.Count1100++
			case Band1200Plus:
				e.Count1200Plus++
			}
		}
		r.mu.Unlock()
		out = append(out, e)
	}
	return out, nil
}

func (r memUsers) update(id int64, fn func(u *model.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return common.ErrNotFound
	}
	fn(u)
	return nil
}

func (r memUsers) UpdateProfile(_ context.Context, id int64, p model.ProfileUpdate) error {
	return r.update(id, func(u *model.User) {
		u.Rating, u.Rank = p.Rating, p.Rank
		if p.AvatarURL != nil {
			u.AvatarURL = p.AvatarURL
		}
	})
}

func (r memUsers) AdvanceCursor(_ context.Context, _ *sql.Tx, id int64, t time.Time) error {
	return r.update(id, func(u *model.User) {
		if u.LastSubmissionTime == nil || u.LastSubmissionTime.Before(t) {
			u.LastSubmissionTime = &t
		}
	})
}

func (r memUsers) UpdateStreak(_ context.Context, id int64, streak int, lastDate *time.Time) error {
	return r.update(id, func(u *model.User) { u.CurrentStreak, u.LastStreakDate = streak, lastDate })
}

func (r memUsers) TouchLastUpdated(_ context.Context, id int64, t time.Time) error {
	return r.update(id, func(u *model.User) { u.LastUpdated = &t })
}

func (r memUsers) SaveRatingHistory(_ context.Context, id int64, h json.RawMessage) error {
	return r.update(id, func(u *model.User) { u.RatingHistory = h })
}

func (r memUsers) SetEnabled(_ context.Context, id int64, enabled bool) error {
	return r.update(id, func(u *model.User) { u.Enabled = enabled })
}

func (r memUsers) SetHidden(_ context.Context, id int64, hidden bool) error {
	return r.update(id, func(u *model.User) { u.IsHidden = hidden })
}

func (r memUsers) Rename(_ context.Context, id int64, handle string) error {
	return r.update(id, func(u *model.User) { u.Handle = handle })
}

func (r memUsers) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.users, id)
	delete(r.subs, id)
	delete(r.stats, id)
	return nil
}

type memSubs struct{ *memStore }

func (r memSubs) BulkInsertIgnore(_ context.Context, _ *sql.Tx, userID int64, batch []model.Submission) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return 0, r.insertErr
	}
	n := 0
	for _, s := range batch {
		dup := false
		for _, existing := range r.subs[userID] {
			if existing.ContestID == s.ContestID && existing.ProblemIndex == s.ProblemIndex {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		s.UserID = userID
		r.subs[userID] = append(r.subs[userID], s)
		n++
	}
	return n, nil
}

func (r memSubs) ListTimes(_ context.Context, userID int64) ([]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []time.Time
	for _, s := range r.subs[userID] {
		out = append(out, s.SubmissionTime)
	}
	return out, nil
}

func (r memSubs) ListRatings(_ context.Context, userID int64) ([]*int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*int
	for _, s := range r.subs[userID] {
		out = append(out, s.Rating)
	}
	return out, nil
}

func (r memSubs) ListByUser(_ context.Context, userID int64) ([]model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Submission(nil), r.subs[userID]...), nil
}

func (r memSubs) Find(ctx context.Context, userID int64, f model.SubmissionFilter) ([]model.Submission, int, error) {
	all, _ := r.ListByUser(ctx, userID)
	end := min(f.Offset+f.Limit, len(all))
	if f.Offset >= len(all) {
		return []model.Submission{}, len(all), nil
	}
	return all[f.Offset:end], len(all), nil
}

func (r memSubs) Latest(ctx context.Context, userID int64, limit int) ([]model.Submission, error) {
	all, _ := r.ListByUser(ctx, userID)
	return all[:min(limit, len(all))], nil
}

type memStats struct{ *memStore }

func (r memStats) Init(_ context.Context, _ *sql.Tx, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stats[userID]; !ok {
		r.stats[userID] = &model.UserStats{UserID: userID}
	}
	return nil
}

func (r memStats) Upsert(_ context.Context, s *model.UserStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.statsErr != nil {
		return r.statsErr
	}
	cp := *s
	r.stats[s.UserID] = &cp
	return nil
}

func (r memStats) FindByUserID(_ context.Context, userID int64) (*model.UserStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stats[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

type memContests struct{ *memStore }

func (r memContests) Upsert(_ context.Context, _ *sql.Tx, c *model.Contest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	if existing, ok := r.contests[c.ID]; ok {
		cp.Problems = existing.Problems
	}
	r.contests[c.ID] = &cp
	return nil
}

func (r memContests) SaveProblems(_ context.Context, id, name string, start *int32, problems json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contests[id]
	if !ok {
		c = &model.Contest{ID: id, Name: name, StartTimeSeconds: start, Platform: model.PlatformCodeforces}
		r.contests[id] = c
	}
	c.Problems = problems
	return nil
}

func (r memContests) FindProblems(_ context.Context, ids []string) (map[string]json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]json.RawMessage{}
	for _, id := range ids {
		if c, ok := r.contests[id]; ok && c.Problems != nil {
			out[id] = c.Problems
		}
	}
	return out, nil
}

func (r memContests) List(context.Context) ([]model.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Contest
	for _, c := range r.contests {
		out = append(out, *c)
	}
	return out, nil
}

type memMeta struct{ *memStore }

func (r memMeta) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meta[key] = value
	return nil
}

func (r memMeta) Get(_ context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.meta[key]
	if !ok {
		return "", common.ErrNotFound
	}
	return v, nil
}

type fakeTx struct{}

func (fakeTx) WithinTx(_ context.Context, fn func(tx *sql.Tx) error) error { return fn(nil) }

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *fakeLocker) TryLock(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, true, nil
}

// fakeJudge records every call it receives.
type fakeJudge struct {
	mu         sync.Mutex
	calls      []string
	users      map[string]*codeforces.User
	infoErr    error
	status     map[string][]codeforces.Submission
	statusErr  error
	ratings    map[string][]codeforces.RatingChange
	contests   []codeforces.Contest
	standings  map[int]*codeforces.Standings
	pageCounts []int
	onStatus   func(ctx context.Context)
}

func (f *fakeJudge) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeJudge) UserInfo(_ context.Context, handle string) (*codeforces.User, error) {
	f.record("user.info:" + handle)
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	if u, ok := f.users[handle]; ok {
		return u, nil
	}
	return &codeforces.User{Handle: handle}, nil
}

func (f *fakeJudge) UserStatus(ctx context.Context, handle string, _, count int) ([]codeforces.Submission, error) {
	f.record("user.status:" + handle)
	if f.onStatus != nil {
		f.onStatus(ctx)
	}
	f.mu.Lock()
	f.pageCounts = append(f.pageCounts, count)
	f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.status[handle], nil
}

func (f *fakeJudge) UserRating(_ context.Context, handle string) ([]codeforces.RatingChange, error) {
	f.record("user.rating:" + handle)
	return f.ratings[handle], nil
}

func (f *fakeJudge) ContestList(context.Context, bool) ([]codeforces.Contest, error) {
	f.record("contest.list")
	return f.contests, nil
}

func (f *fakeJudge) ContestStandings(_ context.Context, contestID, _, _ int) (*codeforces.Standings, error) {
	f.record(fmt.Sprintf("contest.standings:%d", contestID))
	if st, ok := f.standings[contestID]; ok {
		return st, nil
	}
	return nil, codeforces.ErrInvalidParameter
}

func (f *fakeJudge) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
