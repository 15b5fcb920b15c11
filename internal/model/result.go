package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NotAnswered is recorded for questions without a submitted answer.
const NotAnswered = "Not answered"

// Percentage is a score percentage rendered with two decimals.
type Percentage struct {
	decimal.Decimal
}

// NewPercentage wraps a decimal value.
func NewPercentage(d decimal.Decimal) Percentage {
	return Percentage{Decimal: d}
}

// MarshalJSON renders the value as "50.00".
func (p Percentage) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.StringFixed(2))
}

// DetailRecord is the per-question outcome inside a Result.
type DetailRecord struct {
	Question      string `json:"question"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
}

// Result is one scored submission. It is never updated.
type Result struct {
	ID              uuid.UUID      `json:"id"`
	UserID          uuid.UUID      `json:"userId"`
	Email           string         `json:"email"`
	Score           int            `json:"score"`
	TotalQuestions  int            `json:"totalQuestions"`
	Percentage      Percentage     `json:"percentage"`
	TimeSpent       string         `json:"timeSpent"`
	DetailedResults []DetailRecord `json:"detailedResults"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// SubmitExamRequest is the payload of POST /submit-exam.
// Answers are keyed by question id; an empty object is a valid submission.
type SubmitExamRequest struct {
	Answers   map[string]string `json:"answers" binding:"required"`
	UserID    string            `json:"userId" binding:"required"`
	Email     string            `json:"email" binding:"required,email"`
	TimeSpent string            `json:"timeSpent" binding:"max=32"`
}

// ExamReport is returned to the client after a submission is scored.
type ExamReport struct {
	ResultID        uuid.UUID      `json:"resultId"`
	Score           int            `json:"score"`
	TotalQuestions  int            `json:"totalQuestions"`
	Percentage      Percentage     `json:"percentage"`
	TimeSpent       string         `json:"timeSpent,omitempty"`
	DetailedResults []DetailRecord `json:"detailedResults"`
}

// Report projects a Result to the client-facing report.
func (r *Result) Report() ExamReport {
	return ExamReport{
		ResultID:        r.ID,
		Score:           r.Score,
		TotalQuestions:  r.TotalQuestions,
		Percentage:      r.Percentage,
		TimeSpent:       r.TimeSpent,
		DetailedResults: r.DetailedResults,
	}
}
