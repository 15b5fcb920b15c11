//go:build cucumber

package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// TestExamFeatures runs the exam API feature scenarios.
func TestExamFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name: "exam-api",
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			initializeExamScenario(t, sc)
		},
		Options: &godog.Options{
			Format:    "pretty",
			Paths:     []string{filepath.Join("features", "exam.feature")},
			Strict:    true,
			TestingT:  t,
			Randomize: 0,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

// examScenario holds scenario state for the exam API feature.
type examScenario struct {
	t         *testing.T
	h         *harness
	byText    map[string]model.Question
	token     string
	user      *model.User
	adminTok  string
	answers   map[string]string
	responses []*httptest.ResponseRecorder
	last      *httptest.ResponseRecorder
	report    struct {
		Score           int                  `json:"score"`
		TotalQuestions  int                  `json:"totalQuestions"`
		Percentage      string               `json:"percentage"`
		DetailedResults []model.DetailRecord `json:"detailedResults"`
	}
}

func initializeExamScenario(t *testing.T, sc *godog.ScenarioContext) {
	s := &examScenario{t: t}
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		s.h = newHarness(t)
		s.byText = map[string]model.Question{}
		s.answers = map[string]string{}
		s.responses = nil
		s.last = nil
		return ctx, nil
	})

	sc.Step(`^the bank contains:$`, s.givenBank)
	sc.Step(`^a registered exam taker "([^"]+)"$`, s.givenExamTaker)
	sc.Step(`^an admin with permissions? "([^"]+)"$`, s.givenAdmin)
	sc.Step(`^an exam taker fetches the questions (\d+) times$`, s.whenFetchQuestions)
	sc.Step(`^they answer "([^"]+)" with "([^"]*)"$`, s.whenAnswer)
	sc.Step(`^they submit the exam$`, s.whenSubmit)
	sc.Step(`^anyone fetches the exam settings$`, s.whenFetchSettings)
	sc.Step(`^the admin bulk uploads (\d+) questions of which (\d+) lack a correct answer$`, s.whenBulkUpload)
	sc.Step(`^the admin adds "([^"]+)" with options "([^"]+)" and answer "([^"]+)"$`, s.whenAdminAdds)

	sc.Step(`^no response contains a correct answer$`, s.thenNoAnswerLeaks)
	sc.Step(`^the response status is (\d+)$`, s.thenStatus)
	sc.Step(`^the score is (\d+) of (\d+)$`, s.thenScore)
	sc.Step(`^the percentage is "([^"]+)"$`, s.thenPercentage)
	sc.Step(`^the detail for "([^"]+)" is incorrect$`, s.thenDetailIncorrect)
	sc.Step(`^every detail is "([^"]+)"$`, s.thenEveryDetail)
	sc.Step(`^the duration is (\d+) seconds and the passing percentage is (\d+)$`, s.thenSettings)
	sc.Step(`^the settings are stored$`, s.thenSettingsStored)
	sc.Step(`^the inserted count is (\d+)$`, s.thenInsertedCount)
	sc.Step(`^the admin listing shows "([^"]+)" with answer "([^"]+)"$`, s.thenAdminListing)
	sc.Step(`^the exam listing shows "([^"]+)" without an answer$`, s.thenExamListing)
}

func (s *examScenario) givenBank(table *godog.Table) error {
	for _, row := range table.Rows[1:] {
		q := s.h.seed(row.Cells[0].Value, row.Cells[1].Value)
		s.byText[q.Question] = q
	}
	return nil
}

func (s *examScenario) givenExamTaker(email string) error {
	s.token, s.user = s.h.registerUser(s.t, email)
	return nil
}

func (s *examScenario) givenAdmin(perms string) error {
	var list []model.Permission
	for _, p := range strings.Split(perms, ",") {
		list = append(list, model.Permission(strings.TrimSpace(p)))
	}
	s.adminTok = s.h.adminToken(s.t, list...)
	return nil
}

func (s *examScenario) whenFetchQuestions(n int) error {
	for i := 0; i < n; i++ {
		s.responses = append(s.responses, s.h.do(http.MethodGet, "/get-questions", nil, ""))
	}
	return nil
}

func (s *examScenario) whenAnswer(question, answer string) error {
	q, ok := s.byText[question]
	if !ok {
		return fmt.Errorf("unknown question %q", question)
	}
	s.answers[q.ID.String()] = answer
	return nil
}

func (s *examScenario) whenSubmit() error {
	s.last = s.h.do(http.MethodPost, "/submit-exam", map[string]any{
		"answers": s.answers,
		"userId":  s.user.ID.String(),
		"email":   s.user.Email,
	}, s.token)
	return s.decodeData(&s.report)
}

func (s *examScenario) whenFetchSettings() error {
	s.last = s.h.do(http.MethodGet, "/exam-settings", nil, "")
	return nil
}

func (s *examScenario) whenBulkUpload(total, broken int) error {
	entries := make([]map[string]any, 0, total)
	for i := 0; i < total; i++ {
		e := map[string]any{
			"question": fmt.Sprintf("Question %d", i+1),
			"options":  []string{"a", "b", "c", "d"},
		}
		if i >= broken {
			e["correctAnswer"] = "a"
		}
		entries = append(entries, e)
	}
	s.last = s.h.do(http.MethodPost, "/add-bulk-questions", map[string]any{"questions": entries}, s.adminTok)
	return nil
}

func (s *examScenario) whenAdminAdds(text, options, answer string) error {
	s.last = s.h.do(http.MethodPost, "/add-question", map[string]any{
		"question":      text,
		"options":       strings.Split(options, ","),
		"correctAnswer": answer,
	}, s.adminTok)
	if s.last.Code != http.StatusCreated {
		return fmt.Errorf("add failed: %d %s", s.last.Code, s.last.Body.String())
	}
	return nil
}

func (s *examScenario) thenNoAnswerLeaks() error {
	for i, w := range s.responses {
		if w.Code != http.StatusOK {
			return fmt.Errorf("call %d: status %d", i, w.Code)
		}
		if strings.Contains(w.Body.String(), "correctAnswer") {
			return fmt.Errorf("call %d leaked the answer key", i)
		}
	}
	return nil
}

func (s *examScenario) thenStatus(code int) error {
	if s.last == nil {
		return fmt.Errorf("no response recorded")
	}
	if s.last.Code != code {
		return fmt.Errorf("expected status %d, got %d: %s", code, s.last.Code, s.last.Body.String())
	}
	return nil
}

func (s *examScenario) thenScore(score, total int) error {
	if s.report.Score != score || s.report.TotalQuestions != total {
		return fmt.Errorf("expected %d/%d, got %d/%d", score, total, s.report.Score, s.report.TotalQuestions)
	}
	return nil
}

func (s *examScenario) thenPercentage(pct string) error {
	if s.report.Percentage != pct {
		return fmt.Errorf("expected percentage %s, got %s", pct, s.report.Percentage)
	}
	return nil
}

func (s *examScenario) thenDetailIncorrect(question string) error {
	for _, d := range s.report.DetailedResults {
		if d.Question == question {
			if d.IsCorrect {
				return fmt.Errorf("%q marked correct", question)
			}
			return nil
		}
	}
	return fmt.Errorf("no detail for %q", question)
}

func (s *examScenario) thenEveryDetail(answer string) error {
	for _, d := range s.report.DetailedResults {
		if d.UserAnswer != answer || d.IsCorrect {
			return fmt.Errorf("detail %+v", d)
		}
	}
	return nil
}

func (s *examScenario) thenSettings(duration, pct int) error {
	var settings model.ExamSettings
	if err := s.decodeData(&settings); err != nil {
		return err
	}
	if settings.DurationSeconds != duration || settings.PassingPercentage != pct {
		return fmt.Errorf("settings = %+v", settings)
	}
	return nil
}

func (s *examScenario) thenSettingsStored() error {
	if s.h.settings.row == nil {
		return fmt.Errorf("default settings were not persisted")
	}
	return nil
}

func (s *examScenario) thenInsertedCount(n int) error {
	var out struct {
		InsertedCount int `json:"insertedCount"`
	}
	if err := s.decodeData(&out); err != nil {
		return err
	}
	if out.InsertedCount != n {
		return fmt.Errorf("inserted %d, want %d", out.InsertedCount, n)
	}
	return nil
}

func (s *examScenario) thenAdminListing(text, answer string) error {
	s.last = s.h.do(http.MethodGet, "/admin/questions", nil, s.adminTok)
	var qs []model.Question
	if err := s.decodeData(&qs); err != nil {
		return err
	}
	for _, q := range qs {
		if q.Question == text && q.CorrectAnswer == answer {
			return nil
		}
	}
	return fmt.Errorf("admin listing lacks %q/%q: %s", text, answer, s.last.Body.String())
}

func (s *examScenario) thenExamListing(text string) error {
	s.last = s.h.do(http.MethodGet, "/get-questions", nil, "")
	if strings.Contains(s.last.Body.String(), "correctAnswer") {
		return fmt.Errorf("exam listing leaked the answer")
	}
	var qs []model.ExamQuestion
	if err := s.decodeData(&qs); err != nil {
		return err
	}
	for _, q := range qs {
		if q.Question == text {
			return nil
		}
	}
	return fmt.Errorf("exam listing lacks %q", text)
}

func (s *examScenario) decodeData(v any) error {
	if s.last == nil {
		return fmt.Errorf("no response recorded")
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(s.last.Body.Bytes(), &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("response has no data: %s", s.last.Body.String())
	}
	return json.Unmarshal(env.Data, v)
}
