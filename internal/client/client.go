// Package client talks to the exam API on behalf of an exam taker.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/stemsi/exstem-quiz/internal/examsession"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
)

// DefaultTimeout bounds a single request whose context carries no deadline.
const DefaultTimeout = 15 * time.Second

// ErrNotLoggedIn is returned by calls that need a token before Login.
var ErrNotLoggedIn = fmt.Errorf("%w: not logged in", examsession.ErrUnauthorized)

// APIError is a non-2xx reply decoded from the response envelope.
type APIError struct {
	Status  int
	Code    response.ErrCode
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s: %s", e.Status, e.Code, e.Message)
}

// UserMessage is the server's message for the exam taker.
func (e *APIError) UserMessage() string { return e.Message }

// Unwrap lets errors.Is match examsession.ErrUnauthorized on 401 replies.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return examsession.ErrUnauthorized
	}
	return nil
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

// Client is an authenticated API session. It implements examsession.Backend.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration

	mu    sync.RWMutex
	token string
	user  model.User
}

var _ examsession.Backend = (*Client)(nil)

// New returns a client for baseURL. timeout applies to calls made with a
// context that has no deadline of its own; a caller's deadline always wins.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: timeout,
	}
}

// Login authenticates and keeps the token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (model.User, error) {
	var resp model.LoginResponse
	err := c.do(ctx, http.MethodPost, "/login", model.LoginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return model.User{}, err
	}

	c.mu.Lock()
	c.token = resp.Token
	c.user = resp.User
	c.mu.Unlock()
	return resp.User, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, username, email, password string) (model.User, error) {
	var resp struct {
		User model.User `json:"user"`
	}
	req := model.RegisterRequest{Username: username, Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/register", req, &resp); err != nil {
		return model.User{}, err
	}
	return resp.User, nil
}

// Logout revokes the token on the server and forgets it locally, even when
// the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.Forget()
	if !c.LoggedIn() {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/logout", nil, nil)
}

// Forget drops the token and user.
func (c *Client) Forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.user = model.User{}
}

// LoggedIn reports whether a token is held.
func (c *Client) LoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// User returns the logged-in user.
func (c *Client) User() model.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

func (c *Client) FetchQuestions(ctx context.Context) ([]model.ExamQuestion, error) {
	var questions []model.ExamQuestion
	if err := c.do(ctx, http.MethodGet, "/get-questions", nil, &questions); err != nil {
		return nil, err
	}
	if questions == nil {
		questions = []model.ExamQuestion{}
	}
	return questions, nil
}

func (c *Client) FetchSettings(ctx context.Context) (model.ExamSettings, error) {
	var settings model.ExamSettings
	err := c.do(ctx, http.MethodGet, "/exam-settings", nil, &settings)
	return settings, err
}

// Submit sends the answers under the logged-in identity.
func (c *Client) Submit(ctx context.Context, sub examsession.Submission) (*model.ExamReport, error) {
	if !c.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	user := c.User()
	answers := sub.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	req := model.SubmitExamRequest{
		Answers:   answers,
		UserID:    user.ID.String(),
		Email:     user.Email,
		TimeSpent: sub.TimeSpent,
	}

	var report model.ExamReport
	if err := c.do(ctx, http.MethodPost, "/submit-exam", req, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Results returns the logged-in user's results, newest first.
func (c *Client) Results(ctx context.Context) ([]model.Result, error) {
	if !c.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	var results []model.Result
	path := "/user-results/" + url.PathEscape(c.User().Email)
	if err := c.do(ctx, http.MethodGet, path, nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br")

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := readBody(resp)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if decodeErr == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Fields = env.Error.Fields
		}
		if resp.StatusCode == http.StatusUnauthorized {
			c.Forget()
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("%s %s: decode envelope: %w", method, path, decodeErr)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: decode data: %w", method, path, err)
	}
	return nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "br") {
		r = brotli.NewReader(resp.Body)
	}
	return io.ReadAll(r)
}

// IsValidation reports whether err is a 400 with field errors.
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == response.ErrValidation
}
