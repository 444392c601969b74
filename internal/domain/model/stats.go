package model

import "time"

// UserStats is the cached score bucket row for one user.
type UserStats struct {
	UserID         int64     `json:"user_id"`
	TotalScore     int       `json:"total_score"`
	CountNoRating  int       `json:"count_no_rating"`
	Count800900    int       `json:"count_800_900"`
	Count1000      int       `json:"count_1000"`
	Count1100      int       `json:"count_1100"`
	Count1200Plus  int       `json:"count_1200_plus"`
	LastCalculated time.Time `json:"last_calculated"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type DailyScore struct {
	Day   string `json:"day"`
	Score int    `json:"score"`
}

type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

type DetailedStats struct {
	RatingDistribution []CategoryCount `json:"rating_distribution"`
	Progress           []DailyScore    `json:"progress"`
	TopTags            []TagCount      `json:"top_tags"`
	Summary            *UserStats      `json:"summary"`
}
