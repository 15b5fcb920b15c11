package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stemsi/exstem-quiz/internal/examsession"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
)

const testToken = "token-123"

type fakeAPI struct {
	user       model.User
	questions  []model.ExamQuestion
	submitCode int
	submitted  *model.SubmitExamRequest
	authHeader string
	delay      time.Duration
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	api := &fakeAPI{
		user:       model.User{ID: uuid.New(), Username: "ada", Email: "ada@example.com"},
		submitCode: http.StatusOK,
	}

	r := gin.New()
	r.Use(middleware.Brotli())
	r.POST("/login", func(c *gin.Context) {
		var req model.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Password != "Secret1!pass" {
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
			return
		}
		response.Success(c, http.StatusOK, model.LoginResponse{Token: testToken, User: api.user})
	})
	r.GET("/get-questions", func(c *gin.Context) {
		response.Success(c, http.StatusOK, api.questions)
	})
	r.GET("/exam-settings", func(c *gin.Context) {
		response.Success(c, http.StatusOK, model.ExamSettings{DurationSeconds: 1800, PassingPercentage: 60})
	})
	r.POST("/submit-exam", func(c *gin.Context) {
		select {
		case <-time.After(api.delay):
		case <-c.Request.Context().Done():
			return
		}
		api.authHeader = c.GetHeader("Authorization")
		switch api.submitCode {
		case http.StatusUnauthorized:
			response.Fail(c, http.StatusUnauthorized, response.ErrTokenExpired)
			return
		case http.StatusServiceUnavailable:
			response.Fail(c, http.StatusServiceUnavailable, response.ErrUnavailable)
			return
		}
		var req model.SubmitExamRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return
		}
		api.submitted = &req
		response.Success(c, http.StatusOK, model.ExamReport{Score: len(req.Answers), TotalQuestions: 3, TimeSpent: req.TimeSpent})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return api, srv
}

func loggedIn(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c := New(srv.URL, 0)
	if _, err := c.Login(context.Background(), "ada@example.com", "Secret1!pass"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	return c
}

func TestLoginAndSubmit(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := loggedIn(t, srv)

	if !c.LoggedIn() || c.User().Email != "ada@example.com" {
		t.Fatalf("user = %+v", c.User())
	}

	qid := uuid.NewString()
	report, err := c.Submit(context.Background(), examsession.Submission{
		Answers:   map[string]string{qid: "Paris"},
		TimeSpent: "0h 2m 0s",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if report.Score != 1 || report.TimeSpent != "0h 2m 0s" {
		t.Fatalf("report = %+v", report)
	}
	if api.authHeader != "Bearer "+testToken {
		t.Fatalf("Authorization = %q", api.authHeader)
	}
	if api.submitted.UserID != api.user.ID.String() || api.submitted.Email != api.user.Email || api.submitted.Answers[qid] != "Paris" {
		t.Fatalf("submitted = %+v", api.submitted)
	}
}

func TestSubmitWithoutAnswersSendsEmptyObject(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := loggedIn(t, srv)

	if _, err := c.Submit(context.Background(), examsession.Submission{TimeSpent: "0h 0m 1s"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if api.submitted.Answers == nil || len(api.submitted.Answers) != 0 {
		t.Fatalf("answers = %#v", api.submitted.Answers)
	}
}

func TestLoginRejected(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := New(srv.URL, 0)

	_, err := c.Login(context.Background(), "ada@example.com", "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != response.ErrInvalidCredentials {
		t.Fatalf("err = %v", err)
	}
	if c.LoggedIn() {
		t.Fatalf("token kept after failed login")
	}
}

func TestSubmitUnauthorizedForgetsToken(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.submitCode = http.StatusUnauthorized
	c := loggedIn(t, srv)

	_, err := c.Submit(context.Background(), examsession.Submission{})
	if !errors.Is(err, examsession.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if c.LoggedIn() {
		t.Fatalf("token kept after 401")
	}

	if _, err := c.Submit(context.Background(), examsession.Submission{}); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("second submit err = %v", err)
	}
}

func TestSubmitUnavailableCarriesMessage(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.submitCode = http.StatusServiceUnavailable
	c := loggedIn(t, srv)

	_, err := c.Submit(context.Background(), examsession.Submission{})
	if errors.Is(err, examsession.ErrUnauthorized) {
		t.Fatalf("503 mapped to unauthorized")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("err = %v", err)
	}
	if apiErr.UserMessage() != response.GetMessage(response.ErrUnavailable) {
		t.Fatalf("message = %q", apiErr.UserMessage())
	}
	if !c.LoggedIn() {
		t.Fatalf("token dropped on 503")
	}
}

func TestFetchDecodesBrotliBodies(t *testing.T) {
	api, srv := newFakeAPI(t)
	for i := range 50 {
		api.questions = append(api.questions, model.ExamQuestion{
			ID:       uuid.New(),
			Question: fmt.Sprintf("Question number %d about something long enough?", i),
			Options:  []string{"alpha", "beta", "gamma", "delta"},
		})
	}
	c := New(srv.URL, 0)

	questions, err := c.FetchQuestions(context.Background())
	if err != nil {
		t.Fatalf("FetchQuestions: %v", err)
	}
	if len(questions) != 50 || questions[49].Options[3] != "delta" {
		t.Fatalf("questions = %d", len(questions))
	}

	settings, err := c.FetchSettings(context.Background())
	if err != nil || settings.DurationSeconds != 1800 || settings.PassingPercentage != 60 {
		t.Fatalf("settings = %+v, %v", settings, err)
	}
}

func TestFetchEmptyBank(t *testing.T) {
	_, srv := newFakeAPI(t)
	questions, err := New(srv.URL, 0).FetchQuestions(context.Background())
	if err != nil || questions == nil || len(questions) != 0 {
		t.Fatalf("questions = %#v, %v", questions, err)
	}
}

func TestSubmitHonorsCallerDeadline(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.delay = 150 * time.Millisecond

	c := New(srv.URL, 50*time.Millisecond)
	if _, err := c.Login(context.Background(), "ada@example.com", "Secret1!pass"); err != nil {
		t.Fatalf("login: %v", err)
	}

	// The submit deadline is longer than the default request timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := c.Submit(ctx, examsession.Submission{TimeSpent: "0h 0m 1s"}); err != nil {
		t.Fatalf("submit cut short by the default timeout: %v", err)
	}

	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	_, err := c.Submit(short, examsession.Submission{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}
