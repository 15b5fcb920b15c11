package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// SettingRepository persists the singleton exam_settings row.
type SettingRepository struct {
	pool *pgxpool.Pool
}

func NewSettingRepository(pool *pgxpool.Pool) *SettingRepository {
	return &SettingRepository{pool: pool}
}

// GetOrCreate returns the settings row, inserting defaults first when absent.
// Concurrent first reads converge on a single row.
func (r *SettingRepository) GetOrCreate(ctx context.Context, defaults model.ExamSettings) (*model.ExamSettings, error) {
	if _, err := r.pool.Exec(ctx,
		`INSERT INTO exam_settings (id, duration_seconds, passing_percentage)
		 VALUES (1, $1, $2)
		 ON CONFLICT (id) DO NOTHING`,
		defaults.DurationSeconds, defaults.PassingPercentage,
	); err != nil {
		return nil, err
	}

	s := &model.ExamSettings{}
	err := r.pool.QueryRow(ctx,
		`SELECT duration_seconds, passing_percentage, updated_at FROM exam_settings WHERE id = 1`,
	).Scan(&s.DurationSeconds, &s.PassingPercentage, &s.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return s, nil
}

// Save replaces the settings row wholesale.
func (r *SettingRepository) Save(ctx context.Context, s *model.ExamSettings) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_settings (id, duration_seconds, passing_percentage, updated_at)
		 VALUES (1, $1, $2, NOW())
		 ON CONFLICT (id) DO UPDATE
		 SET duration_seconds = EXCLUDED.duration_seconds,
		     passing_percentage = EXCLUDED.passing_percentage,
		     updated_at = NOW()
		 RETURNING updated_at`,
		s.DurationSeconds, s.PassingPercentage,
	).Scan(&s.UpdatedAt)
}
