package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OptionCount is the number of answer options every question carries.
const OptionCount = 4

// Question is a bank entry including its answer key.
type Question struct {
	ID            uuid.UUID `json:"id"`
	Question      string    `json:"question"`
	Options       []string  `json:"options"`
	CorrectAnswer string    `json:"correctAnswer"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ExamQuestion is the student-facing projection of a Question.
// It deliberately has no answer field.
type ExamQuestion struct {
	ID       uuid.UUID `json:"id"`
	Question string    `json:"question"`
	Options  []string  `json:"options"`
}

// ForExam strips the answer key.
func (q Question) ForExam() ExamQuestion {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	return ExamQuestion{ID: q.ID, Question: q.Question, Options: opts}
}

// QuestionInput is a question as submitted by an admin, before validation.
type QuestionInput struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// AddQuestionRequest is the payload for adding or replacing a question.
type AddQuestionRequest struct {
	Question      string   `json:"question" binding:"required,max=2000"`
	Options       []string `json:"options" binding:"required,dive,max=500"`
	CorrectAnswer string   `json:"correctAnswer" binding:"required,max=500"`
}

// Input converts the request into a QuestionInput.
func (r AddQuestionRequest) Input() QuestionInput {
	return QuestionInput{Question: r.Question, Options: r.Options, CorrectAnswer: r.CorrectAnswer}
}

// BulkQuestionsRequest carries raw entries; malformed ones are dropped by the service.
type BulkQuestionsRequest struct {
	Questions []json.RawMessage `json:"questions" binding:"required"`
}
