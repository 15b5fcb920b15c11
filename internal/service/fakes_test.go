package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/resultlog"
)

var errStoreDown = errors.New("connection refused")

func quietLogger() zerolog.Logger { return zerolog.New(io.Discard) }

// fakeQuestionStore keeps questions in insertion order.
type fakeQuestionStore struct {
	mu        sync.Mutex
	questions []model.Question
	listCalls int
	err       error
}

func (f *fakeQuestionStore) ListCanonical(context.Context) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.Question, len(f.questions))
	copy(out, f.questions)
	return out, nil
}

func (f *fakeQuestionStore) ListNewestFirst(ctx context.Context) ([]model.Question, error) {
	qs, err := f.ListCanonical(ctx)
	for i, j := 0, len(qs)-1; i < j; i, j = i+1, j-1 {
		qs[i], qs[j] = qs[j], qs[i]
	}
	return qs, err
}

func (f *fakeQuestionStore) Create(_ context.Context, q *model.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	q.ID = uuid.New()
	q.CreatedAt = time.Now()
	q.UpdatedAt = q.CreatedAt
	f.questions = append(f.questions, *q)
	return nil
}

func (f *fakeQuestionStore) Replace(_ context.Context, q *model.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.questions {
		if f.questions[i].ID == q.ID {
			q.CreatedAt = f.questions[i].CreatedAt
			f.questions[i] = *q
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeQuestionStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.questions {
		if f.questions[i].ID == id {
			f.questions = append(f.questions[:i], f.questions[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeQuestionStore) DeleteAll(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.questions))
	f.questions = nil
	return n, nil
}

func (f *fakeQuestionStore) BulkCreate(ctx context.Context, qs []model.Question) (int64, error) {
	for i := range qs {
		if err := f.Create(ctx, &qs[i]); err != nil {
			return int64(i), err
		}
	}
	return int64(len(qs)), nil
}

func (f *fakeQuestionStore) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.questions)), f.err
}

func (f *fakeQuestionStore) seed(pairs ...[2]string) []model.Question {
	for _, p := range pairs {
		q := &model.Question{
			Question:      p[0],
			Options:       []string{p[1], p[1] + "?", p[1] + "!", p[1] + "."},
			CorrectAnswer: p[1],
		}
		_ = f.Create(context.Background(), q)
	}
	return f.questions
}

// fakeCache mirrors the generation-keyed Redis cache.
type fakeCache struct {
	mu       sync.Mutex
	gen      int64
	payloads map[int64][]model.ExamQuestion
	bumps    int
	bumpErrs int

	// beforeSet runs once, just before the next Set stores its payload.
	beforeSet func()
}

func (c *fakeCache) Generation(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, nil
}

func (c *fakeCache) Get(_ context.Context, gen int64) ([]model.ExamQuestion, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	qs, ok := c.payloads[gen]
	if !ok {
		return nil, false, nil
	}
	out := make([]model.ExamQuestion, len(qs))
	copy(out, qs)
	return out, true, nil
}

func (c *fakeCache) Set(_ context.Context, gen int64, qs []model.ExamQuestion) error {
	if hook := c.beforeSet; hook != nil {
		c.beforeSet = nil
		hook()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.payloads == nil {
		c.payloads = map[int64][]model.ExamQuestion{}
	}
	c.payloads[gen] = qs
	return nil
}

func (c *fakeCache) Bump(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bumpErrs > 0 {
		c.bumpErrs--
		return errStoreDown
	}
	c.gen++
	c.bumps++
	return nil
}

type fakeSettingStore struct {
	row    *model.ExamSettings
	writes int
}

func (f *fakeSettingStore) GetOrCreate(_ context.Context, defaults model.ExamSettings) (*model.ExamSettings, error) {
	if f.row == nil {
		d := defaults
		f.row = &d
		f.writes++
	}
	out := *f.row
	return &out, nil
}

func (f *fakeSettingStore) Save(_ context.Context, s *model.ExamSettings) error {
	cp := *s
	f.row = &cp
	f.writes++
	return nil
}

type fakeResultStore struct {
	mu      sync.Mutex
	results []model.Result
	err     error
}

func (f *fakeResultStore) Create(_ context.Context, res *model.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	res.ID = uuid.New()
	res.CreatedAt = time.Now()
	f.results = append(f.results, *res)
	return nil
}

func (f *fakeResultStore) ListByEmail(_ context.Context, email string) ([]model.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Result
	for i := len(f.results) - 1; i >= 0; i-- {
		if f.results[i].Email == email {
			out = append(out, f.results[i])
		}
	}
	return out, nil
}

func (f *fakeResultStore) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.results)), nil
}

type fakeTrail struct {
	entries []resultlog.Entry
	err     error
}

func (t *fakeTrail) Record(_ context.Context, e resultlog.Entry) error {
	t.entries = append(t.entries, e)
	return t.err
}

type fakeFeed struct {
	events []repository.ResultEvent
	err    error
}

func (f *fakeFeed) Publish(_ context.Context, ev repository.ResultEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

type fakeUserStore struct {
	byEmail map[string]*model.User
}

func (f *fakeUserStore) Create(_ context.Context, u *model.User) error {
	if f.byEmail == nil {
		f.byEmail = map[string]*model.User{}
	}
	if _, ok := f.byEmail[u.Email]; ok {
		return repository.ErrDuplicate
	}
	u.ID = uuid.New()
	cp := *u
	f.byEmail[u.Email] = &cp
	return nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if u, ok := f.byEmail[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserStore) Count(context.Context) (int64, error) {
	return int64(len(f.byEmail)), nil
}

type fakeAdminStore struct {
	admins []*model.Admin
}

func (f *fakeAdminStore) GetByEmail(_ context.Context, email string) (*model.Admin, error) {
	for _, a := range f.admins {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeAdminStore) Create(_ context.Context, a *model.Admin) error {
	for _, existing := range f.admins {
		if existing.Email == a.Email {
			return repository.ErrDuplicate
		}
	}
	a.ID = len(f.admins) + 1
	cp := *a
	f.admins = append(f.admins, &cp)
	return nil
}

type fakeTokenStore struct {
	revoked map[string]time.Duration
}

func (f *fakeTokenStore) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if f.revoked == nil {
		f.revoked = map[string]time.Duration{}
	}
	f.revoked[jti] = ttl
	return nil
}

func (f *fakeTokenStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, ok := f.revoked[jti]
	return ok, nil
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: 4,
	}
}
