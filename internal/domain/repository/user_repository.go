package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tracking_cf/internal/common"
	"tracking_cf/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type UserRepository interface {
	Create(ctx context.Context, tx *sql.Tx, user *model.User) error
	FindByID(ctx context.Context, id int64) (*model.User, error)
	FindByHandle(ctx context.Context, handle string) (*model.User, error)
	ListAll(ctx context.Context) ([]model.User, error)
	ListEnabled(ctx context.Context) ([]model.User, error)
	ListWithActiveStreak(ctx context.Context) ([]model.User, error)
	Leaderboard(ctx context.Context, since *time.Time) ([]model.LeaderboardEntry, error)

	UpdateProfile(ctx context.Context, id int64, p model.ProfileUpdate) error
	AdvanceCursor(ctx context.Context, tx *sql.Tx, id int64, t time.Time) error
	UpdateStreak(ctx context.Context, id int64, streak int, lastDate *time.Time) error
	TouchLastUpdated(ctx context.Context, id int64, t time.Time) error
	SaveRatingHistory(ctx context.Context, id int64, history json.RawMessage) error
	SetEnabled(ctx context.Context, id int64, enabled bool) error
	SetHidden(ctx context.Context, id int64, hidden bool) error
	Rename(ctx context.Context, id int64, handle string) error
	Delete(ctx context.Context, id int64) error
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, handle, rating, rank, avatar_url, enabled, is_hidden, last_submission_time,
	current_streak, last_streak_date, last_updated, rating_history, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	var history []byte
	err := row.Scan(&u.ID, &u.Handle, &u.Rating, &u.Rank, &u.AvatarURL, &u.Enabled, &u.IsHidden,
		&u.LastSubmissionTime, &u.CurrentStreak, &u.LastStreakDate, &u.LastUpdated, &history, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(history) > 0 {
		u.RatingHistory = json.RawMessage(history)
	}
	if u.LastStreakDate != nil {
		d := time.Date(u.LastStreakDate.Year(), u.LastStreakDate.Month(), u.LastStreakDate.Day(), 0, 0, 0, 0, time.UTC)
		u.LastStreakDate = &d
	}
	return u, nil
}

func (r *pgUserRepository) Create(ctx context.Context, tx *sql.Tx, user *model.User) error {
	query := `INSERT INTO users (handle, rating, rank, avatar_url, enabled, is_hidden)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id, created_at`
	err := pick(r.db, tx).QueryRowContext(ctx, query,
		user.Handle, user.Rating, user.Rank, user.AvatarURL, user.Enabled, user.IsHidden,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("user %q is already tracked: %w", user.Handle, common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.FindByID: %w", err)
	}
	return u, nil
}

// FindByHandle matches case-insensitively, as Codeforces does.
func (r *pgUserRepository) FindByHandle(ctx context.Context, handle string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(handle) = LOWER($1)`, handle))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.FindByHandle: %w", err)
	}
	return u, nil
}

func (r *pgUserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users ORDER BY handle`)
}

func (r *pgUserRepository) ListEnabled(ctx context.Context) ([]model.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE enabled ORDER BY handle`)
}

func (r *pgUserRepository) ListWithActiveStreak(ctx context.Context) ([]model.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE current_streak > 0 ORDER BY handle`)
}

func (r *pgUserRepository) list(ctx context.Context, query string, args ...any) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.list: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("pgUserRepository.list scan: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// Leaderboard aggregates band counts for visible users. Scores and ranks are
// filled in by the caller.
func (r *pgUserRepository) Leaderboard(ctx context.Context, since *time.Time) ([]model.LeaderboardEntry, error) {
	query := `SELECT u.id, u.handle, u.avatar_url, u.rating, u.rank, u.current_streak, u.last_updated,
	                 COUNT(s.id),
	                 COUNT(s.id) FILTER (WHERE s.rating IS NULL OR s.rating = 0),
	                 COUNT(s.id) FILTER (WHERE s.rating BETWEEN 800 AND 900),
	                 COUNT(s.id) FILTER (WHERE s.rating = 1000),
	                 COUNT(s.id) FILTER (WHERE s.rating = 1100),
	                 COUNT(s.id) FILTER (WHERE s.rating >= 1200)
	          FROM users u
	          LEFT JOIN submissions s
	                 ON s.user_id = u.id AND ($1::timestamptz IS NULL OR s.submission_time >= $1::timestamptz)
	          WHERE u.enabled AND NOT u.is_hidden
	          GROUP BY u.id
	          ORDER BY u.handle`
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.Leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Handle, &e.AvatarURL, &e.Rating, &e.RankTitle, &e.CurrentStreak, &e.LastUpdated,
			&e.TotalSubmissions, &e.CountNoRating, &e.Count800900, &e.Count1000, &e.Count1100, &e.Count1200Plus); err != nil {
			return nil, fmt.Errorf("pgUserRepository.Leaderboard scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *pgUserRepository) UpdateProfile(ctx context.Context, id int64, p model.ProfileUpdate) error {
	query := `UPDATE users SET rating = $2, rank = $3, avatar_url = COALESCE($4, avatar_url) WHERE id = $1`
	return r.exec(ctx, nil, "UpdateProfile", query, id, p.Rating, p.Rank, p.AvatarURL)
}

// AdvanceCursor never moves the cursor backwards.
func (r *pgUserRepository) AdvanceCursor(ctx context.Context, tx *sql.Tx, id int64, t time.Time) error {
	query := `UPDATE users SET last_submission_time = $2
	          WHERE id = $1 AND (last_submission_time IS NULL OR last_submission_time < $2)`
	_, err := pick(r.db, tx).ExecContext(ctx, query, id, t.UTC())
	if err != nil {
		return fmt.Errorf("pgUserRepository.AdvanceCursor: %w", err)
	}
	return nil
}

func (r *pgUserRepository) UpdateStreak(ctx context.Context, id int64, streak int, lastDate *time.Time) error {
	var day any
	if lastDate != nil {
		day = lastDate.Format(time.DateOnly)
	}
	return r.exec(ctx, nil, "UpdateStreak", `UPDATE users SET current_streak = $2, last_streak_date = $3::date WHERE id = $1`, id, streak, day)
}

func (r *pgUserRepository) TouchLastUpdated(ctx context.Context, id int64, t time.Time) error {
	return r.exec(ctx, nil, "TouchLastUpdated", `UPDATE users SET last_updated = $2 WHERE id = $1`, id, t.UTC())
}

func (r *pgUserRepository) SaveRatingHistory(ctx context.Context, id int64, history json.RawMessage) error {
	return r.exec(ctx, nil, "SaveRatingHistory", `UPDATE users SET rating_history = $2::jsonb WHERE id = $1`, id, string(history))
}

func (r *pgUserRepository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	return r.exec(ctx, nil, "SetEnabled", `UPDATE users SET enabled = $2 WHERE id = $1`, id, enabled)
}

func (r *pgUserRepository) SetHidden(ctx context.Context, id int64, hidden bool) error {
	return r.exec(ctx, nil, "SetHidden", `UPDATE users SET is_hidden = $2 WHERE id = $1`, id, hidden)
}

func (r *pgUserRepository) Rename(ctx context.Context, id int64, handle string) error {
	err := r.exec(ctx, nil, "Rename", `UPDATE users SET handle = $2 WHERE id = $1`, id, handle)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("handle %q is already tracked: %w", handle, common.ErrConflict)
	}
	return err
}

// Delete removes the user; submissions and stats cascade.
func (r *pgUserRepository) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, nil, "Delete", `DELETE FROM users WHERE id = $1`, id)
}

func (r *pgUserRepository) exec(ctx context.Context, tx *sql.Tx, op, query string, args ...any) error {
	res, err := pick(r.db, tx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("pgUserRepository.%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}
