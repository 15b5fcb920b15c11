package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `id, question, options, correct_answer, created_at, updated_at`

// ListCanonical returns the whole bank in insertion order.
func (r *QuestionRepository) ListCanonical(ctx context.Context) ([]model.Question, error) {
	return r.list(ctx, `SELECT `+questionColumns+` FROM questions ORDER BY seq ASC`)
}

// ListNewestFirst returns the whole bank, most recently created first.
func (r *QuestionRepository) ListNewestFirst(ctx context.Context) ([]model.Question, error) {
	return r.list(ctx, `SELECT `+questionColumns+` FROM questions ORDER BY seq DESC`)
}

func (r *QuestionRepository) list(ctx context.Context, query string) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Question, &q.Options, &q.CorrectAnswer, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (question, options, correct_answer)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		q.Question, q.Options, q.CorrectAnswer,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
}

// Replace overwrites every field of an existing question.
func (r *QuestionRepository) Replace(ctx context.Context, q *model.Question) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE questions SET question = $2, options = $3, correct_answer = $4, updated_at = NOW()
		 WHERE id = $1
		 RETURNING created_at, updated_at`,
		q.ID, q.Question, q.Options, q.CorrectAnswer,
	).Scan(&q.CreatedAt, &q.UpdatedAt)
	return translate(err)
}

// Delete removes a question by ID.
func (r *QuestionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll empties the bank and reports how many rows were removed.
func (r *QuestionRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// BulkCreate copies questions in one statement, keeping slice order as bank order.
func (r *QuestionRepository) BulkCreate(ctx context.Context, questions []model.Question) (int64, error) {
	rows := make([][]any, len(questions))
	for i, q := range questions {
		rows[i] = []any{q.Question, q.Options, q.CorrectAnswer}
	}
	return r.pool.CopyFrom(ctx,
		pgx.Identifier{"questions"},
		[]string{"question", "options", "correct_answer"},
		pgx.CopyFromRows(rows),
	)
}

// Count returns the bank size.
func (r *QuestionRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n)
	return n, err
}
