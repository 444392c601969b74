package model

import "time"

type LeaderboardPeriod string

const (
	PeriodWeek  LeaderboardPeriod = "week"
	PeriodMonth LeaderboardPeriod = "month"
	PeriodYear  LeaderboardPeriod = "year"
	PeriodAll   LeaderboardPeriod = "all"
)

type LeaderboardEntry struct {
	Rank             int        `json:"rank"`
	UserID           int64      `json:"user_id"`
	Handle           string     `json:"handle"`
	AvatarURL        *string    `json:"avatar_url"`
	Rating           *int       `json:"rating"`
	RankTitle        *string    `json:"rank_title"`
	CurrentStreak    int        `json:"current_streak"`
	LastUpdated      *time.Time `json:"last_updated"`
	TotalSubmissions int        `json:"total_submissions"`
	CountNoRating    int        `json:"count_no_rating"`
	Count800900      int        `json:"count_800_900"`
	Count1000        int        `json:"count_1000"`
	Count1100        int        `json:"count_1100"`
	Count1200Plus    int        `json:"count_1200_plus"`
	TotalScore       int        `json:"total_score"`
}
