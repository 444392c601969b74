package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tracking_cf/internal/domain/model"
)

// insertChunk keeps a single INSERT well under the 65535 parameter limit.
const insertChunk = 500

type SubmissionRepository interface {
	// BulkInsertIgnore inserts subs, skipping rows that already exist, and
	// returns how many rows were actually inserted.
	BulkInsertIgnore(ctx context.Context, tx *sql.Tx, userID int64, subs []model.Submission) (int, error)
	ListTimes(ctx context.Context, userID int64) ([]time.Time, error)
	ListRatings(ctx context.Context, userID int64) ([]*int, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Submission, error)
	Find(ctx context.Context, userID int64, f model.SubmissionFilter) ([]model.Submission, int, error)
	Latest(ctx context.Context, userID int64, limit int) ([]model.Submission, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

func (r *pgSubmissionRepository) BulkInsertIgnore(ctx context.Context, tx *sql.Tx, userID int64, subs []model.Submission) (int, error) {
	q := pick(r.db, tx)
	inserted := 0
	for start := 0; start < len(subs); start += insertChunk {
		end := min(start+insertChunk, len(subs))
		batch := subs[start:end]

		var sb strings.Builder
		sb.WriteString(`INSERT INTO submissions
			(user_id, contest_id, problem_index, problem_name, rating, tags, submission_time) VALUES `)
		args := make([]any, 0, len(batch)*7)
		for i, s := range batch {
			if i > 0 {
				sb.WriteString(", ")
			}
			n := i * 7
			fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d::jsonb, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)

			tags := s.Tags
			if tags == nil {
				tags = []string{}
			}
			tagsJSON, err := json.Marshal(tags)
			if err != nil {
				return inserted, fmt.Errorf("pgSubmissionRepository.BulkInsertIgnore: marshal tags: %w", err)
			}
			args = append(args, userID, s.ContestID, s.ProblemIndex, s.ProblemName, s.Rating, string(tagsJSON), s.SubmissionTime.UTC())
		}
		sb.WriteString(` ON CONFLICT (user_id, contest_id, problem_index) DO NOTHING`)

		res, err := q.ExecContext(ctx, sb.String(), args...)
		if err != nil {
			return inserted, fmt.Errorf("pgSubmissionRepository.BulkInsertIgnore: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("pgSubmissionRepository.BulkInsertIgnore rows affected: %w", err)
		}
		inserted += int(n)
	}
	return inserted, nil
}

func (r *pgSubmissionRepository) ListTimes(ctx context.Context, userID int64) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT submission_time FROM submissions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListTimes: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.ListTimes scan: %w", err)
		}
		out = append(out, t.UTC())
	}
	return out, rows.Err()
}

func (r *pgSubmissionRepository) ListRatings(ctx context.Context, userID int64) ([]*int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT rating FROM submissions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListRatings: %w", err)
	}
	defer rows.Close()

	var out []*int
	for rows.Next() {
		var rating *int
		if err := rows.Scan(&rating); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.ListRatings scan: %w", err)
		}
		out = append(out, rating)
	}
	return out, rows.Err()
}

const submissionColumns = `id, user_id, contest_id, problem_index, problem_name, rating, tags, submission_time`

func (r *pgSubmissionRepository) ListByUser(ctx context.Context, userID int64) ([]model.Submission, error) {
	return r.query(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE user_id = $1 ORDER BY submission_time DESC`, userID)
}

func (r *pgSubmissionRepository) Latest(ctx context.Context, userID int64, limit int) ([]model.Submission, error) {
	return r.query(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE user_id = $1
		ORDER BY submission_time DESC, id DESC LIMIT $2`, userID, limit)
}

// Find applies f and returns one page plus the total number of matches.
func (r *pgSubmissionRepository) Find(ctx context.Context, userID int64, f model.SubmissionFilter) ([]model.Submission, int, error) {
	where, args := buildSubmissionWhere(userID, f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.Find count: %w", err)
	}

	order := "DESC"
	if !f.Desc {
		order = "ASC"
	}
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE %s ORDER BY %s %s NULLS LAST, id %s LIMIT $%d OFFSET $%d`,
		submissionColumns, where, sortColumn(f.SortBy), order, order, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	subs, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

func sortColumn(s model.SubmissionSort) string {
	switch s {
	case model.SortByRating:
		return "rating"
	case model.SortByContestID:
		return "contest_id"
	default:
		return "submission_time"
	}
}

func buildSubmissionWhere(userID int64, f model.SubmissionFilter) (string, []any) {
	clauses := []string{"user_id = $1"}
	args := []any{userID}
	add := func(expr string, v any) {
		args = append(args, v)
		clauses = append(clauses, strings.Replace(expr, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if f.NoRating {
		clauses = append(clauses, "(rating IS NULL OR rating = 0)")
	} else {
		if f.RatingMin != nil {
			add("rating >= ?", *f.RatingMin)
		}
		if f.RatingMax != nil {
			add("rating <= ?", *f.RatingMax)
		}
	}
	if f.DateFrom != nil {
		add("submission_time >= ?", f.DateFrom.UTC())
	}
	if f.DateTo != nil {
		add("submission_time <= ?", f.DateTo.UTC())
	}
	return strings.Join(clauses, " AND "), args
}

func (r *pgSubmissionRepository) query(ctx context.Context, query string, args ...any) ([]model.Submission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.query: %w", err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var s model.Submission
		var tags []byte
		if err := rows.Scan(&s.ID, &s.UserID, &s.ContestID, &s.ProblemIndex, &s.ProblemName, &s.Rating, &tags, &s.SubmissionTime); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.query scan: %w", err)
		}
		s.Tags = []string{}
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &s.Tags); err != nil {
				return nil, fmt.Errorf("pgSubmissionRepository.query tags: %w", err)
			}
		}
		s.SubmissionTime = s.SubmissionTime.UTC()
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
