package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// ResultRepository handles scored submissions.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Create inserts a result and fills its ID and timestamp.
func (r *ResultRepository) Create(ctx context.Context, res *model.Result) error {
	details, err := json.Marshal(res.DetailedResults)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO results (user_id, email, score, total_questions, percentage, time_spent, detailed_results)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		res.UserID, res.Email, res.Score, res.TotalQuestions,
		res.Percentage.Round(2).String(), res.TimeSpent, details,
	).Scan(&res.ID, &res.CreatedAt)
}

// ListByEmail returns every result for an email, newest first.
func (r *ResultRepository) ListByEmail(ctx context.Context, email string) ([]model.Result, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, email, score, total_questions, percentage::text, time_spent, detailed_results, created_at
		 FROM results WHERE email = $1
		 ORDER BY created_at DESC`, email,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		var (
			res     model.Result
			pct     string
			details []byte
		)
		if err := rows.Scan(&res.ID, &res.UserID, &res.Email, &res.Score, &res.TotalQuestions,
			&pct, &res.TimeSpent, &details, &res.CreatedAt); err != nil {
			return nil, err
		}
		if err := res.Percentage.Scan(pct); err != nil {
			return nil, fmt.Errorf("parse percentage: %w", err)
		}
		if err := json.Unmarshal(details, &res.DetailedResults); err != nil {
			return nil, fmt.Errorf("unmarshal details: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// Count returns the number of recorded submissions.
func (r *ResultRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM results`).Scan(&n)
	return n, err
}
