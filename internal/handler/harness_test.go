package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/handler"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/resultlog"
	"github.com/stemsi/exstem-quiz/internal/router"
	"github.com/stemsi/exstem-quiz/internal/service"
)

// ─── In-memory stores ───────────────────────────────────────────────

type memQuestions struct {
	mu   sync.Mutex
	list []model.Question
	err  error
}

func (m *memQuestions) ListCanonical(context.Context) ([]model.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]model.Question(nil), m.list...), nil
}

func (m *memQuestions) ListNewestFirst(ctx context.Context) ([]model.Question, error) {
	qs, err := m.ListCanonical(ctx)
	for i, j := 0, len(qs)-1; i < j; i, j = i+1, j-1 {
		qs[i], qs[j] = qs[j], qs[i]
	}
	return qs, err
}

func (m *memQuestions) Create(_ context.Context, q *model.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q.ID = uuid.New()
	q.CreatedAt = time.Now()
	m.list = append(m.list, *q)
	return nil
}

func (m *memQuestions) Replace(_ context.Context, q *model.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.list {
		if m.list[i].ID == q.ID {
			m.list[i] = *q
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memQuestions) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.list {
		if m.list[i].ID == id {
			m.list = append(m.list[:i], m.list[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memQuestions) DeleteAll(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.list))
	m.list = nil
	return n, nil
}

func (m *memQuestions) BulkCreate(ctx context.Context, qs []model.Question) (int64, error) {
	for i := range qs {
		_ = m.Create(ctx, &qs[i])
	}
	return int64(len(qs)), nil
}

func (m *memQuestions) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.list)), nil
}

type memSettings struct{ row *model.ExamSettings }

func (m *memSettings) GetOrCreate(_ context.Context, d model.ExamSettings) (*model.ExamSettings, error) {
	if m.row == nil {
		m.row = &d
	}
	cp := *m.row
	return &cp, nil
}

func (m *memSettings) Save(_ context.Context, s *model.ExamSettings) error {
	cp := *s
	m.row = &cp
	return nil
}

type memResults struct {
	mu   sync.Mutex
	list []model.Result
}

func (m *memResults) Create(_ context.Context, r *model.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	m.list = append(m.list, *r)
	return nil
}

func (m *memResults) ListByEmail(_ context.Context, email string) ([]model.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Result
	for i := len(m.list) - 1; i >= 0; i-- {
		if m.list[i].Email == email {
			out = append(out, m.list[i])
		}
	}
	return out, nil
}

func (m *memResults) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.list)), nil
}

func (m *memResults) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.list)
}

type memUsers struct {
	mu      sync.Mutex
	byEmail map[string]model.User
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[u.Email]; ok {
		return repository.ErrDuplicate
	}
	u.ID = uuid.New()
	m.byEmail[u.Email] = *u
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byEmail[email]; ok {
		return &u, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byEmail {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.byEmail)), nil
}

type memAdmins struct{ list []model.Admin }

func (m *memAdmins) GetByEmail(_ context.Context, email string) (*model.Admin, error) {
	for _, a := range m.list {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memAdmins) Create(_ context.Context, a *model.Admin) error {
	a.ID = len(m.list) + 1
	m.list = append(m.list, *a)
	return nil
}

type memTokens struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (m *memTokens) Revoke(_ context.Context, jti string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = true
	return nil
}

func (m *memTokens) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[jti], nil
}

type memTrail struct {
	mu      sync.Mutex
	entries []resultlog.Entry
}

func (m *memTrail) Record(_ context.Context, e resultlog.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

// memFeed fans published events out to every live subscriber.
type memFeed struct {
	mu   sync.Mutex
	subs map[chan string]struct{}
}

func (f *memFeed) Publish(_ context.Context, ev repository.ResultEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- string(payload):
		default:
		}
	}
	return nil
}

func (f *memFeed) Subscribe(context.Context) (<-chan string, func() error, error) {
	ch := make(chan string, 8)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	stop := func() error {
		f.mu.Lock()
		delete(f.subs, ch)
		f.mu.Unlock()
		return nil
	}
	return ch, stop, nil
}

func (f *memFeed) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// memQueue answers LLen from a fixed table.
type memQueue struct {
	mu      sync.Mutex
	lengths map[string]int64
}

func (q *memQueue) LLen(_ context.Context, key string) *redis.IntCmd {
	q.mu.Lock()
	defer q.mu.Unlock()
	return redis.NewIntResult(q.lengths[key], nil)
}

func (q *memQueue) set(key string, n int64) {
	q.mu.Lock()
	q.lengths[key] = n
	q.mu.Unlock()
}

// ─── Harness ────────────────────────────────────────────────────────

type harness struct {
	router    *gin.Engine
	auth      *service.AuthService
	questions *memQuestions
	settings  *memSettings
	results   *memResults
	trail     *memTrail
	feed      *memFeed
	queue     *memQueue
}

func newHarness(t testing.TB) *harness {
	t.Helper()

	cfg := &config.Config{
		GinMode:        gin.TestMode,
		JWTSecret:      "handler-test-secret",
		JWTExpiry:      time.Hour,
		BcryptCost:     4,
		MaxUploadBytes: 64 << 10,
		AuthRateLimit:  1000,
	}
	log := zerolog.New(io.Discard)

	h := &harness{
		questions: &memQuestions{},
		settings:  &memSettings{},
		results:   &memResults{},
		trail:     &memTrail{},
		feed:      &memFeed{subs: map[chan string]struct{}{}},
		queue:     &memQueue{lengths: map[string]int64{}},
	}

	auth := service.NewAuthService(cfg,
		&memUsers{byEmail: map[string]model.User{}},
		&memAdmins{},
		&memTokens{revoked: map[string]bool{}},
		log)
	questionSvc := service.NewQuestionService(h.questions, nil, log)
	settingSvc := service.NewSettingService(h.settings, log)
	examSvc := service.NewExamService(h.questions, h.results, h.trail, h.feed, log)
	statsSvc := service.NewStatsService(questionSvc, auth, examSvc)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h.auth = auth
	h.router = router.SetupRouter(ctx, auth, &router.Handlers{
		Auth:     handler.NewAuthHandler(auth, log),
		Exam:     handler.NewExamHandler(questionSvc, settingSvc, examSvc, log),
		Question: handler.NewQuestionHandler(questionSvc, cfg.MaxUploadBytes, log),
		Setting:  handler.NewSettingHandler(settingSvc, log),
		Stats:    handler.NewStatsHandler(statsSvc, log),
		System:   handler.NewSystemHandler(h.queue, nil, log),
		WS:       handler.NewWSHandler(h.feed, log, nil),
	}, cfg)
	return h
}

// seed stores a question whose options are derived from the answer.
func (h *harness) seed(text, answer string) model.Question {
	q := &model.Question{
		Question:      text,
		Options:       []string{answer, answer + "x", answer + "y", answer + "z"},
		CorrectAnswer: answer,
	}
	_ = h.questions.Create(context.Background(), q)
	return *q
}

func (h *harness) registerUser(t testing.TB, email string) (string, *model.User) {
	t.Helper()
	u, err := h.auth.Register(context.Background(), model.RegisterRequest{
		Username: "Exam Taker", Email: email, Password: "Secret1!pass",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	token, err := h.auth.GenerateUserToken(u)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return token, u
}

func (h *harness) adminToken(t testing.TB, perms ...model.Permission) string {
	t.Helper()
	codes := make([]string, len(perms))
	for i, p := range perms {
		codes[i] = string(p)
	}
	token, err := h.auth.GenerateAdminToken(&model.Admin{ID: 1, Email: "root@example.com", Permissions: codes})
	if err != nil {
		t.Fatalf("admin token: %v", err)
	}
	return token
}

func (h *harness) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// envelope mirrors response.Response with a raw data member.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decode(t testing.TB, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, w.Body.String())
	}
	if data != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("decode data: %v (data %s)", err, env.Data)
		}
	}
	return env
}
