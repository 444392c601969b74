package service

import "tracking_cf/internal/domain/model"

// Band is a difficulty bucket used for scoring.
type Band int

const (
	BandNone Band = iota // rating outside every bucket, not scored
	BandUnrated
	Band800to900
	Band1000
	Band1100
	Band1200Plus
)

var bandWeights = map[Band]int{
	BandUnrated:  1,
	Band800to900: 1,
	Band1000:     2,
	Band1100:     3,
	Band1200Plus: 5,
}

func (b Band) Weight() int {
	return bandWeights[b]
}

func (b Band) Label() string {
	switch b {
	case BandUnrated:
		return "unrated"
	case Band800to900:
		return "800-900"
	case Band1000:
		return "1000"
	case Band1100:
		return "1100"
	case Band1200Plus:
		return "1200+"
	default:
		return "other"
	}
}

func ScoreBand(rating *int) Band {
	if rating == nil || *rating == 0 {
		return BandUnrated
	}
	r := *rating
	switch {
	case r >= 800 && r <= 900:
		return Band800to900
	case r == 1000:
		return Band1000
	case r == 1100:
		return Band1100
	case r >= 1200:
		return Band1200Plus
	default:
		return BandNone
	}
}

type ScoreSummary struct {
	CountNoRating int `json:"count_no_rating"`
	Count800900   int `json:"count_800_900"`
	Count1000     int `json:"count_1000"`
	Count1100     int `json:"count_1100"`
	Count1200Plus int `json:"count_1200_plus"`
	TotalScore    int `json:"total_score"`
}

func (s *ScoreSummary) add(b Band, n int) {
	switch b {
	case BandUnrated:
		s.CountNoRating += n
	case Band800to900:
		s.Count800900 += n
	case Band1000:
		s.Count1000 += n
	case Band1100:
		s.Count1100 += n
	case Band1200Plus:
		s.Count1200Plus += n
	}
	s.TotalScore += b.Weight() * n
}

func ComputeScore(ratings []*int) ScoreSummary {
	var s ScoreSummary
	for _, r := range ratings {
		s.add(ScoreBand(r), 1)
	}
	return s
}

// ScoreFromCounts weights already-aggregated band counters.
func ScoreFromCounts(noRating, c800900, c1000, c1100, c1200Plus int) int {
	var s ScoreSummary
	s.add(BandUnrated, noRating)
	s.add(Band800to900, c800900)
	s.add(Band1000, c1000)
	s.add(Band1100, c1100)
	s.add(Band1200Plus, c1200Plus)
	return s.TotalScore
}

func (s ScoreSummary) toStats(userID int64) *model.UserStats {
	return &model.UserStats{
		UserID:        userID,
		TotalScore:    s.TotalScore,
		CountNoRating: s.CountNoRating,
		Count800900:   s.Count800900,
		Count1000:     s.Count1000,
		Count1100:     s.Count1100,
		Count1200Plus: s.Count1200Plus,
	}
}
