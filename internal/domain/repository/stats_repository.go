package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tracking_cf/internal/common"
	"tracking_cf/internal/domain/model"
)

type StatsRepository interface {
	Init(ctx context.Context, tx *sql.Tx, userID int64) error
	// Upsert overwrites the cached buckets for one user.
	Upsert(ctx context.Context, stats *model.UserStats) error
	FindByUserID(ctx context.Context, userID int64) (*model.UserStats, error)
}

type pgStatsRepository struct {
	db *sql.DB
}

func NewPgStatsRepository(db *sql.DB) StatsRepository {
	return &pgStatsRepository{db: db}
}

func (r *pgStatsRepository) Init(ctx context.Context, tx *sql.Tx, userID int64) error {
	_, err := pick(r.db, tx).ExecContext(ctx,
		`INSERT INTO user_stats (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("pgStatsRepository.Init: %w", err)
	}
	return nil
}

func (r *pgStatsRepository) Upsert(ctx context.Context, s *model.UserStats) error {
	query := `INSERT INTO user_stats
	            (user_id, total_score, count_no_rating, count_800_900, count_1000, count_1100, count_1200_plus, last_calculated)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	          ON CONFLICT (user_id) DO UPDATE SET
	            total_score = EXCLUDED.total_score,
	            count_no_rating = EXCLUDED.count_no_rating,
	            count_800_900 = EXCLUDED.count_800_900,
	            count_1000 = EXCLUDED.count_1000,
	            count_1100 = EXCLUDED.count_1100,
	            count_1200_plus = EXCLUDED.count_1200_plus,
	            last_calculated = EXCLUDED.last_calculated
	          RETURNING last_calculated`
	err := r.db.QueryRowContext(ctx, query, s.UserID, s.TotalScore, s.CountNoRating, s.Count800900,
		s.Count1000, s.Count1100, s.Count1200Plus).Scan(&s.LastCalculated)
	if err != nil {
		return fmt.Errorf("pgStatsRepository.Upsert: %w", err)
	}
	return nil
}

func (r *pgStatsRepository) FindByUserID(ctx context.Context, userID int64) (*model.UserStats, error) {
	s := &model.UserStats{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, total_score, count_no_rating, count_800_900, count_1000, count_1100, count_1200_plus, last_calculated
		 FROM user_stats WHERE user_id = $1`, userID,
	).Scan(&s.UserID, &s.TotalScore, &s.CountNoRating, &s.Count800900, &s.Count1000, &s.Count1100, &s.Count1200Plus, &s.LastCalculated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgStatsRepository.FindByUserID: %w", err)
	}
	return s, nil
}
