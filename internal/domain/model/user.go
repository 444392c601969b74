package model

import (
	"encoding/json"
	"time"
)

const RoleAdmin = "admin"

// User is a tracked Codeforces handle. LastSubmissionTime is the ingestion
// cursor; LastStreakDate is a calendar day stored at UTC midnight.
type User struct {
	ID                 int64           `json:"id"`
	Handle             string          `json:"handle"`
	Rating             *int            `json:"rating"`
	Rank               *string         `json:"rank"`
	AvatarURL          *string         `json:"avatar_url"`
	Enabled            bool            `json:"enabled"`
	IsHidden           bool            `json:"is_hidden"`
	LastSubmissionTime *time.Time      `json:"last_submission_time"`
	CurrentStreak      int             `json:"current_streak"`
	LastStreakDate     *time.Time      `json:"last_streak_date"`
	LastUpdated        *time.Time      `json:"last_updated"`
	RatingHistory      json.RawMessage `json:"rating_history,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// ProfileUpdate carries the fields refreshed from user.info.
type ProfileUpdate struct {
	Rating    *int
	Rank      *string
	AvatarURL *string
}

type Admin struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
