package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tracking_cf/internal/api/handler"
	"tracking_cf/internal/app/service"
	"tracking_cf/internal/common"
	"tracking_cf/internal/common/security"
	"tracking_cf/internal/domain/model"
	"tracking_cf/internal/platform/codeforces"
	"tracking_cf/internal/platform/logging"
)

type stubStats struct {
	periods []model.LeaderboardPeriod
}

func (s *stubStats) Leaderboard(_ context.Context, period model.LeaderboardPeriod) ([]model.LeaderboardEntry, error) {
	s.periods = append(s.periods, period)
	if period == "decade" {
		return nil, common.ErrBadRequest
	}
	return []model.LeaderboardEntry{{Rank: 1, Handle: "tourist", TotalScore: 12}}, nil
}

func (s *stubStats) DetailedStats(_ context.Context, handle string) (*model.DetailedStats, error) {
	if handle != "tourist" {
		return nil, common.ErrNotFound
	}
	return &model.DetailedStats{}, nil
}

type stubSubmissions struct {
	filter model.SubmissionFilter
	limit  int
}

func (s *stubSubmissions) ListSubmissions(_ context.Context, _ string, f model.SubmissionFilter) (*model.SubmissionPage, error) {
	s.filter = f
	return &model.SubmissionPage{Submissions: []model.Submission{}, Limit: f.Limit}, nil
}

func (s *stubSubmissions) Latest(_ context.Context, _ string, limit int) ([]model.Submission, error) {
	s.limit = limit
	return []model.Submission{}, nil
}

type stubRoster struct {
	users   map[string]*model.User
	created []string
	deleted []string
}

func (s *stubRoster) GetUser(_ context.Context, handle string) (*model.User, error) {
	if u, ok := s.users[strings.ToLower(handle)]; ok {
		return u, nil
	}
	return nil, common.ErrNotFound
}

func (s *stubRoster) ListAll(context.Context) ([]model.User, error) {
	out := []model.User{}
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out, nil
}

func (s *stubRoster) CreateUser(_ context.Context, handle string) (*model.User, service.IngestResult, error) {
	if handle == "ghost" {
		return nil, service.IngestResult{}, fmt.Errorf("verify ghost on codeforces: %w", codeforces.ErrHandleNotFound)
	}
	s.created = append(s.created, handle)
	return &model.User{ID: 7, Handle: handle, Enabled: true}, service.IngestResult{Handle: handle, NewSubmissions: 4}, nil
}

func (s *stubRoster) RenameUser(_ context.Context, oldHandle, newHandle string) (*model.User, error) {
	u, err := s.GetUser(context.Background(), oldHandle)
	if err != nil {
		return nil, err
	}
	u.Handle = newHandle
	return u, nil
}

func (s *stubRoster) SetEnabled(ctx context.Context, handle string, enabled bool) (*model.User, error) {
	u, err := s.GetUser(ctx, handle)
	if err != nil {
		return nil, err
	}
	u.Enabled = enabled
	return u, nil
}

func (s *stubRoster) ToggleEnabled(ctx context.Context, handle string) (*model.User, error) {
	u, err := s.GetUser(ctx, handle)
	if err != nil {
		return nil, err
	}
	u.Enabled = !u.Enabled
	return u, nil
}

func (s *stubRoster) SetHidden(ctx context.Context, handle string, hidden bool) (*model.User, error) {
	u, err := s.GetUser(ctx, handle)
	if err != nil {
		return nil, err
	}
	u.IsHidden = hidden
	return u, nil
}

func (s *stubRoster) ToggleHidden(ctx context.Context, handle string) (*model.User, error) {
	u, err := s.GetUser(ctx, handle)
	if err != nil {
		return nil, err
	}
	u.IsHidden = !u.IsHidden
	return u, nil
}

func (s *stubRoster) DeleteUser(_ context.Context, handle string) error {
	s.deleted = append(s.deleted, handle)
	return nil
}

type stubAuth struct{}

func (stubAuth) Login(_ context.Context, req service.LoginRequest) (*service.AuthResponse, error) {
	if req.Password != "correct horse" {
		return nil, common.ErrUnauthorized
	}
	token, err := security.GenerateToken(1, req.Username, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return &service.AuthResponse{Admin: &model.Admin{ID: 1, Username: req.Username}, Token: token}, nil
}

type stubTracker struct{ err error }

func (s stubTracker) IngestUser(_ context.Context, handle string) service.IngestResult {
	return service.IngestResult{Handle: handle, NewSubmissions: 2, Err: s.err}
}

type stubEnqueuer struct{ triggers []model.RunTrigger }

func (s *stubEnqueuer) EnqueueSweep(_ context.Context, trigger model.RunTrigger) (string, error) {
	s.triggers = append(s.triggers, trigger)
	return "task-1", nil
}

type stubContests struct{}

func (stubContests) ListContests(context.Context) (*service.ContestListing, error) {
	return &service.ContestListing{Contests: []model.Contest{{ID: "2000", Name: "Round"}}}, nil
}

func (stubContests) Freshness(context.Context) (*model.Freshness, error) {
	return &model.Freshness{}, nil
}

type testServer struct {
	handler     http.Handler
	stats       *stubStats
	submissions *stubSubmissions
	roster      *stubRoster
	enqueuer    *stubEnqueuer
}

func newTestServer(tracker stubTracker) *testServer {
	security.InitJWT([]byte("router-test-secret"), time.Hour)
	ts := &testServer{
		stats:       &stubStats{},
		submissions: &stubSubmissions{},
		roster:      &stubRoster{users: map[string]*model.User{"tourist": {ID: 1, Handle: "tourist", Enabled: true}}},
		enqueuer:    &stubEnqueuer{},
	}
	lima := time.FixedZone("lima", -5*3600)
	ts.handler = NewRouter(Handlers{
		Users:       handler.NewUserHandler(ts.stats, ts.roster),
		Submissions: handler.NewSubmissionHandler(ts.submissions, ts.stats, lima),
		Contests:    handler.NewContestHandler(stubContests{}, stubContests{}),
		Admin:       handler.NewAdminHandler(stubAuth{}, ts.roster, tracker, ts.enqueuer),
	}, []string{"http://localhost:3000"}, logging.Discard())
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/v1/admin/login", "", map[string]string{"username": "root", "password": "correct horse"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Data service.AuthResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp.Data.Token
}

func TestPublicRoutes(t *testing.T) {
	ts := newTestServer(stubTracker{})

	cases := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/api/v1/users", http.StatusOK},
		{"/api/v1/users?period=week", http.StatusOK},
		{"/api/v1/users?period=decade", http.StatusBadRequest},
		{"/api/v1/users/tourist", http.StatusOK},
		{"/api/v1/users/nobody", http.StatusNotFound},
		{"/api/v1/submissions/tourist/stats", http.StatusOK},
		{"/api/v1/submissions/nobody/stats", http.StatusNotFound},
		{"/api/v1/submissions/tourist/latest?limit=5", http.StatusOK},
		{"/api/v1/contests", http.StatusOK},
		{"/api/v1/meta", http.StatusOK},
	}
	for _, c := range cases {
		if rec := ts.do(t, http.MethodGet, c.path, "", nil); rec.Code != c.want {
			t.Errorf("GET %s = %d, want %d (%s)", c.path, rec.Code, c.want, rec.Body)
		}
	}
	if ts.stats.periods[0] != model.PeriodAll {
		t.Fatalf("default period = %q", ts.stats.periods[0])
	}
	if ts.submissions.limit != 5 {
		t.Fatalf("latest limit = %d", ts.submissions.limit)
	}
}

func TestSubmissionFilters(t *testing.T) {
	ts := newTestServer(stubTracker{})

	rec := ts.do(t, http.MethodGet, "/api/v1/submissions/tourist?ratingMin=800&ratingMax=1200&dateFrom=2026-01-01&dateTo=2026-01-31&noRating=true&sortBy=rating&order=asc&limit=20&offset=40", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	f := ts.submissions.filter
	if *f.RatingMin != 800 || *f.RatingMax != 1200 || !f.NoRating || f.Desc || f.SortBy != model.SortByRating || f.Limit != 20 || f.Offset != 40 {
		t.Fatalf("unexpected filter: %+v", f)
	}
	lima := time.FixedZone("lima", -5*3600)
	if !f.DateFrom.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, lima)) {
		t.Fatalf("dateFrom = %v", f.DateFrom)
	}
	if !f.DateTo.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, lima).Add(-time.Nanosecond)) {
		t.Fatalf("dateTo = %v", f.DateTo)
	}

	for _, q := range []string{"ratingMin=abc", "dateFrom=yesterday", "noRating=maybe", "limit=-1"} {
		if rec := ts.do(t, http.MethodGet, "/api/v1/submissions/tourist?"+q, "", nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", q, rec.Code)
		}
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	ts := newTestServer(stubTracker{})

	if rec := ts.do(t, http.MethodGet, "/api/v1/admin/users", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/v1/admin/users", "not-a-jwt", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/api/v1/admin/login", "", map[string]string{"username": "root", "password": "nope"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: status %d", rec.Code)
	}

	_, legacy, err := security.TokenAuth.Encode(map[string]any{"user_id": "1", "role": model.RoleAdmin})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if rec := ts.do(t, http.MethodGet, "/api/v1/admin/users", legacy, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("token without admin_id: status %d", rec.Code)
	}

	rec := ts.do(t, http.MethodPost, "/api/v1/admin/login", "", map[string]string{"username": "root"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing password: status %d", rec.Code)
	}
	var resp common.ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Details["password"] != "required" {
		t.Fatalf("expected validation details, got %+v", resp)
	}
}

func TestAdminUserLifecycle(t *testing.T) {
	ts := newTestServer(stubTracker{})
	token := ts.login(t)

	if rec := ts.do(t, http.MethodPost, "/api/v1/admin/users", token, map[string]string{"handle": "petr"}); rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d: %s", rec.Code, rec.Body)
	}
	if rec := ts.do(t, http.MethodPost, "/api/v1/admin/users", token, map[string]string{"handle": "ghost"}); rec.Code != http.StatusNotFound {
		t.Fatalf("create unknown handle: status %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/api/v1/admin/users", token, map[string]string{"handle": ""}); rec.Code != http.StatusBadRequest {
		t.Fatalf("create empty handle: status %d", rec.Code)
	}

	if rec := ts.do(t, http.MethodPut, "/api/v1/admin/users/tourist/enable", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("toggle enable: status %d", rec.Code)
	}
	if ts.roster.users["tourist"].Enabled {
		t.Fatalf("empty body should toggle enabled off")
	}
	if rec := ts.do(t, http.MethodPut, "/api/v1/admin/users/tourist/visibility", token, map[string]bool{"value": true}); rec.Code != http.StatusOK {
		t.Fatalf("visibility: status %d", rec.Code)
	}
	if !ts.roster.users["tourist"].IsHidden {
		t.Fatalf("explicit value not applied")
	}
	if rec := ts.do(t, http.MethodPut, "/api/v1/admin/users/tourist/rename", token, map[string]string{"new_handle": "tourist2"}); rec.Code != http.StatusOK {
		t.Fatalf("rename: status %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/api/v1/admin/users/tourist/track", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("track: status %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodDelete, "/api/v1/admin/users/tourist", token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}

	rec := ts.do(t, http.MethodPost, "/api/v1/admin/tracker/run", token, nil)
	if rec.Code != http.StatusAccepted || len(ts.enqueuer.triggers) != 1 || ts.enqueuer.triggers[0] != model.TriggerAdmin {
		t.Fatalf("tracker run: status %d triggers %v", rec.Code, ts.enqueuer.triggers)
	}
}

func TestAdminTrackMapsIngestionErrors(t *testing.T) {
	ts := newTestServer(stubTracker{err: fmt.Errorf("%w: tourist is already being ingested", common.ErrJobLockFailed)})
	token := ts.login(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/admin/users/tourist/track", token, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}

	ts = newTestServer(stubTracker{err: fmt.Errorf("fetch: %w", codeforces.ErrAPIUnavailable)})
	token = ts.login(t)
	if rec := ts.do(t, http.MethodPost, "/api/v1/admin/users/tourist/track", token, nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rec.Code)
	}
}
