package service

import (
	"sort"
	"time"
)

type StreakResult struct {
	Streak   int        `json:"streak"`
	LastDate *time.Time `json:"last_date"`
}

// localDay maps t to its calendar day in loc, represented as UTC midnight so
// that day arithmetic is exact across DST changes.
func localDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ComputeStreak counts consecutive local days with at least one solve, ending
// at the most recent such day. The streak is zero unless that day is today or
// yesterday in loc.
func ComputeStreak(instants []time.Time, loc *time.Location, now time.Time) StreakResult {
	if loc == nil {
		loc = time.UTC
	}
	today := localDay(now, loc)
	yesterday := today.AddDate(0, 0, -1)

	// Days after today only appear with clock skew; they are ignored.
	set := make(map[time.Time]struct{}, len(instants))
	for _, t := range instants {
		if d := localDay(t, loc); !d.After(today) {
			set[d] = struct{}{}
		}
	}
	if len(set) == 0 {
		return StreakResult{}
	}
	days := make([]time.Time, 0, len(set))
	for d := range set {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	latest := days[0]
	if !latest.Equal(today) && !latest.Equal(yesterday) {
		return StreakResult{}
	}

	streak := 1
	for i := 1; i < len(days); i++ {
		if !days[i].Equal(days[i-1].AddDate(0, 0, -1)) {
			break
		}
		streak++
	}
	return StreakResult{Streak: streak, LastDate: &latest}
}
