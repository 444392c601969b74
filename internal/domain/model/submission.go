package model

import "time"

// Submission is an accepted solve, unique per (user, contest, problem index).
type Submission struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	ContestID      int       `json:"contest_id"`
	ProblemIndex   string    `json:"problem_index"`
	ProblemName    string    `json:"problem_name"`
	Rating         *int      `json:"rating"`
	Tags           []string  `json:"tags"`
	SubmissionTime time.Time `json:"submission_time"`
}

type SubmissionSort string

const (
	SortBySubmissionTime SubmissionSort = "submission_time"
	SortByRating         SubmissionSort = "rating"
	SortByContestID      SubmissionSort = "contest_id"
)

// SubmissionFilter narrows the public submission listing.
type SubmissionFilter struct {
	RatingMin *int
	RatingMax *int
	DateFrom  *time.Time
	DateTo    *time.Time
	NoRating  bool
	SortBy    SubmissionSort
	Desc      bool
	Limit     int
	Offset    int
}

type SubmissionPage struct {
	Submissions []Submission `json:"submissions"`
	Total       int          `json:"total"`
	Limit       int          `json:"limit"`
	Offset      int          `json:"offset"`
	HasMore     bool         `json:"has_more"`
}
