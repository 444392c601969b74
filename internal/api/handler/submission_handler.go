package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tracking_cf/internal/common"
	"tracking_cf/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type SubmissionReader interface {
	ListSubmissions(ctx context.Context, handle string, f model.SubmissionFilter) (*model.SubmissionPage, error)
	Latest(ctx context.Context, handle string, limit int) ([]model.Submission, error)
}

type StatsReader interface {
	DetailedStats(ctx context.Context, handle string) (*model.DetailedStats, error)
}

type SubmissionHandler struct {
	submissions SubmissionReader
	stats       StatsReader
	loc         *time.Location
}

func NewSubmissionHandler(submissions SubmissionReader, stats StatsReader, loc *time.Location) *SubmissionHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &SubmissionHandler{submissions: submissions, stats: stats, loc: loc}
}

func (h *SubmissionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{handle}", h.listSubmissions)
	r.Get("/{handle}/stats", h.getStats)
	r.Get("/{handle}/latest", h.latest)
}

func (h *SubmissionHandler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSubmissionFilter(r.URL.Query(), h.loc)
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := h.submissions.ListSubmissions(r.Context(), chi.URLParam(r, "handle"), filter)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, page)
}

func (h *SubmissionHandler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.DetailedStats(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, stats)
}

func (h *SubmissionHandler) latest(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	subs, err := h.submissions.Latest(r.Context(), chi.URLParam(r, "handle"), limit)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, subs)
}

// parseSubmissionFilter reads ratingMin, ratingMax, dateFrom, dateTo, noRating,
// sortBy, order, limit and offset. Dates are YYYY-MM-DD in loc or RFC3339;
// a plain dateTo covers the whole day.
func parseSubmissionFilter(q url.Values, loc *time.Location) (model.SubmissionFilter, error) {
	f := model.SubmissionFilter{
		SortBy: model.SubmissionSort(q.Get("sortBy")),
		Desc:   !strings.EqualFold(q.Get("order"), "asc"),
	}
	var err error
	if f.RatingMin, err = optionalInt(q, "ratingMin"); err != nil {
		return f, err
	}
	if f.RatingMax, err = optionalInt(q, "ratingMax"); err != nil {
		return f, err
	}
	if f.DateFrom, err = optionalDate(q, "dateFrom", loc, false); err != nil {
		return f, err
	}
	if f.DateTo, err = optionalDate(q, "dateTo", loc, true); err != nil {
		return f, err
	}
	if raw := q.Get("noRating"); raw != "" {
		if f.NoRating, err = strconv.ParseBool(raw); err != nil {
			return f, fmt.Errorf("noRating must be a boolean")
		}
	}
	for key, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		v, err := optionalInt(q, key)
		if err != nil {
			return f, err
		}
		if v != nil {
			if *v < 0 {
				return f, fmt.Errorf("%s must not be negative", key)
			}
			*dst = *v
		}
	}
	return f, nil
}

func optionalInt(q url.Values, key string) (*int, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", key)
	}
	return &v, nil
}

func optionalDate(q url.Values, key string, loc *time.Location, endOfDay bool) (*time.Time, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD or RFC3339", key)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &t, nil
}
