package model

import (
	"encoding/json"
	"time"
)

const PlatformCodeforces = "CODEFORCES"

type Contest struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Type                string          `json:"type"`
	Phase               string          `json:"phase"`
	Frozen              bool            `json:"frozen"`
	DurationSeconds     *int32          `json:"duration_seconds"`
	StartTimeSeconds    *int32          `json:"start_time_seconds"`
	RelativeTimeSeconds *int32          `json:"relative_time_seconds"`
	Platform            string          `json:"platform"`
	Problems            json.RawMessage `json:"problems,omitempty"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// ContestProblem is the cached shape of one problem in contests.problems.
type ContestProblem struct {
	Index  string   `json:"index"`
	Name   string   `json:"name"`
	Rating *int     `json:"rating,omitempty"`
	Tags   []string `json:"tags"`
}

// RatingHistoryEntry is one rated contest enriched with the user's verdicts.
type RatingHistoryEntry struct {
	ContestID               int             `json:"contest_id"`
	ContestName             string          `json:"contest_name"`
	Rank                    int             `json:"rank"`
	OldRating               int             `json:"old_rating"`
	NewRating               int             `json:"new_rating"`
	RatingUpdateTimeSeconds int64           `json:"rating_update_time_seconds"`
	Problems                []ProblemResult `json:"problems"`
}

type ProblemResult struct {
	Index     string   `json:"index"`
	Name      string   `json:"name"`
	Rating    *int     `json:"rating,omitempty"`
	Tags      []string `json:"tags"`
	Verdict   *string  `json:"verdict"`
	Attempted bool     `json:"attempted"`
}
