package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"tracking_cf/internal/domain/model"
)

type ContestRepository interface {
	Upsert(ctx context.Context, tx *sql.Tx, c *model.Contest) error
	// SaveProblems caches the problem list of a contest, creating a stub row if needed.
	SaveProblems(ctx context.Context, id, name string, startTimeSeconds *int32, problems json.RawMessage) error
	FindProblems(ctx context.Context, ids []string) (map[string]json.RawMessage, error)
	List(ctx context.Context) ([]model.Contest, error)
}

type pgContestRepository struct {
	db *sql.DB
}

func NewPgContestRepository(db *sql.DB) ContestRepository {
	return &pgContestRepository{db: db}
}

func (r *pgContestRepository) Upsert(ctx context.Context, tx *sql.Tx, c *model.Contest) error {
	platform := c.Platform
	if platform == "" {
		platform = model.PlatformCodeforces
	}
	query := `INSERT INTO contests
	            (id, name, type, phase, frozen, duration_seconds, start_time_seconds, relative_time_seconds, platform)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          ON CONFLICT (id) DO UPDATE SET
	            name = EXCLUDED.name,
	            type = EXCLUDED.type,
	            phase = EXCLUDED.phase,
	            frozen = EXCLUDED.frozen,
	            duration_seconds = EXCLUDED.duration_seconds,
	            start_time_seconds = EXCLUDED.start_time_seconds,
	            relative_time_seconds = EXCLUDED.relative_time_seconds,
	            platform = EXCLUDED.platform,
	            updated_at = NOW()`
	_, err := pick(r.db, tx).ExecContext(ctx, query, c.ID, c.Name, c.Type, c.Phase, c.Frozen,
		c.DurationSeconds, c.StartTimeSeconds, c.RelativeTimeSeconds, platform)
	if err != nil {
		return fmt.Errorf("pgContestRepository.Upsert %s: %w", c.ID, err)
	}
	return nil
}

func (r *pgContestRepository) SaveProblems(ctx context.Context, id, name string, startTimeSeconds *int32, problems json.RawMessage) error {
	query := `INSERT INTO contests (id, name, start_time_seconds, problems, platform)
	          VALUES ($1, $2, $3, $4::jsonb, $5)
	          ON CONFLICT (id) DO UPDATE SET problems = EXCLUDED.problems, updated_at = NOW()`
	_, err := r.db.ExecContext(ctx, query, id, name, startTimeSeconds, string(problems), model.PlatformCodeforces)
	if err != nil {
		return fmt.Errorf("pgContestRepository.SaveProblems %s: %w", id, err)
	}
	return nil
}

func (r *pgContestRepository) FindProblems(ctx context.Context, ids []string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, problems FROM contests WHERE id = ANY($1) AND problems IS NOT NULL`, ids)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.FindProblems: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var problems []byte
		if err := rows.Scan(&id, &problems); err != nil {
			return nil, fmt.Errorf("pgContestRepository.FindProblems scan: %w", err)
		}
		out[id] = json.RawMessage(problems)
	}
	return out, rows.Err()
}

func (r *pgContestRepository) List(ctx context.Context) ([]model.Contest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(type, ''), COALESCE(phase, ''), frozen, duration_seconds, start_time_seconds,
		        relative_time_seconds, platform, updated_at
		 FROM contests
		 ORDER BY start_time_seconds DESC NULLS LAST, id`)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.List: %w", err)
	}
	defer rows.Close()

	contests := []model.Contest{}
	for rows.Next() {
		var c model.Contest
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.Phase, &c.Frozen, &c.DurationSeconds, &c.StartTimeSeconds,
			&c.RelativeTimeSeconds, &c.Platform, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pgContestRepository.List scan: %w", err)
		}
		contests = append(contests, c)
	}
	return contests, rows.Err()
}
