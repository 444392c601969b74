package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tracking_cf/internal/common"
	"tracking_cf/internal/domain/model"

	"github.com/google/uuid"
)

type MetadataRepository interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
}

type pgMetadataRepository struct {
	db *sql.DB
}

func NewPgMetadataRepository(db *sql.DB) MetadataRepository {
	return &pgMetadataRepository{db: db}
}

func (r *pgMetadataRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO system_metadata (key_name, value, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (key_name) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`, key, value)
	if err != nil {
		return fmt.Errorf("pgMetadataRepository.Set %s: %w", key, err)
	}
	return nil
}

func (r *pgMetadataRepository) Get(ctx context.Context, key string) (string, error) {
	var value sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT value FROM system_metadata WHERE key_name = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("pgMetadataRepository.Get %s: %w", key, err)
	}
	return value.String, nil
}

type RunRepository interface {
	Create(ctx context.Context, run *model.TrackerRun) error
	Finish(ctx context.Context, run *model.TrackerRun) error
	Latest(ctx context.Context) (*model.TrackerRun, error)
}

type pgRunRepository struct {
	db *sql.DB
}

func NewPgRunRepository(db *sql.DB) RunRepository {
	return &pgRunRepository{db: db}
}

func (r *pgRunRepository) Create(ctx context.Context, run *model.TrackerRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tracker_runs (id, trigger, started_at, users_total) VALUES ($1, $2, $3, $4)`,
		run.ID, string(run.Trigger), run.StartedAt.UTC(), run.UsersTotal)
	if err != nil {
		return fmt.Errorf("pgRunRepository.Create: %w", err)
	}
	return nil
}

func (r *pgRunRepository) Finish(ctx context.Context, run *model.TrackerRun) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tracker_runs
		 SET finished_at = $2, users_total = $3, new_submissions = $4, error_count = $5, disabled_count = $6
		 WHERE id = $1`,
		run.ID, run.FinishedAt, run.UsersTotal, run.NewSubmissions, run.ErrorCount, run.DisabledCount)
	if err != nil {
		return fmt.Errorf("pgRunRepository.Finish: %w", err)
	}
	return nil
}

func (r *pgRunRepository) Latest(ctx context.Context) (*model.TrackerRun, error) {
	run := &model.TrackerRun{}
	var trigger string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, trigger, started_at, finished_at, users_total, new_submissions, error_count, disabled_count
		 FROM tracker_runs ORDER BY started_at DESC LIMIT 1`,
	).Scan(&run.ID, &trigger, &run.StartedAt, &run.FinishedAt, &run.UsersTotal, &run.NewSubmissions, &run.ErrorCount, &run.DisabledCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgRunRepository.Latest: %w", err)
	}
	run.Trigger = model.RunTrigger(trigger)
	return run, nil
}
