package service

import (
	"time"

	"tracking_cf/internal/domain/model"
	"tracking_cf/internal/platform/codeforces"
)

type problemKey struct {
	contestID int
	index     string
}

// NormalizeSubmissions keeps accepted events created at or after cutoff,
// deduplicated by (contest, index). The first occurrence wins, which is the
// most recent one since user.status lists newest first.
func NormalizeSubmissions(events []codeforces.Submission, cutoff time.Time) []model.Submission {
	seen := make(map[problemKey]struct{}, len(events))
	out := make([]model.Submission, 0, len(events))
	for _, ev := range events {
		if ev.Verdict != codeforces.VerdictOK {
			continue
		}
		created := time.Unix(ev.CreationTimeSeconds, 0).UTC()
		if created.Before(cutoff) {
			continue
		}

		contestID := ev.Problem.ContestID
		if contestID == 0 {
			contestID = ev.ContestID
		}
		key := problemKey{contestID: contestID, index: ev.Problem.Index}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		var rating *int
		if ev.Problem.Rating != nil && *ev.Problem.Rating != 0 {
			r := *ev.Problem.Rating
			rating = &r
		}
		tags := make([]string, len(ev.Problem.Tags))
		copy(tags, ev.Problem.Tags)

		out = append(out, model.Submission{
			ContestID:      contestID,
			ProblemIndex:   ev.Problem.Index,
			ProblemName:    ev.Problem.Name,
			Rating:         rating,
			Tags:           tags,
			SubmissionTime: created,
		})
	}
	return out
}
