package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/resultlog"
)

// Storage ports. The repository package provides the Postgres and Redis
// implementations; tests use in-memory fakes.

type QuestionStore interface {
	ListCanonical(ctx context.Context) ([]model.Question, error)
	ListNewestFirst(ctx context.Context) ([]model.Question, error)
	Create(ctx context.Context, q *model.Question) error
	Replace(ctx context.Context, q *model.Question) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) (int64, error)
	BulkCreate(ctx context.Context, questions []model.Question) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// QuestionPayloadCache stores answer-free payloads keyed by bank generation.
type QuestionPayloadCache interface {
	Generation(ctx context.Context) (int64, error)
	Get(ctx context.Context, gen int64) ([]model.ExamQuestion, bool, error)
	Set(ctx context.Context, gen int64, questions []model.ExamQuestion) error
	Bump(ctx context.Context) error
}

type SettingStore interface {
	GetOrCreate(ctx context.Context, defaults model.ExamSettings) (*model.ExamSettings, error)
	Save(ctx context.Context, s *model.ExamSettings) error
}

type ResultStore interface {
	Create(ctx context.Context, res *model.Result) error
	ListByEmail(ctx context.Context, email string) ([]model.Result, error)
	Count(ctx context.Context) (int64, error)
}

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	Count(ctx context.Context) (int64, error)
}

type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (*model.Admin, error)
	Create(ctx context.Context, a *model.Admin) error
}

type TokenStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AuditTrail receives every recorded result for the plain-text log.
type AuditTrail interface {
	Record(ctx context.Context, e resultlog.Entry) error
}

// ResultPublisher notifies live monitors about recorded results.
type ResultPublisher interface {
	Publish(ctx context.Context, ev repository.ResultEvent) error
}
