// Package scoring grades a submitted answer set against the question bank.
//
// Scoring is pure: the same answers against the same bank always produce the
// same outcome. Detail records follow the bank's canonical order, not the
// order the questions were shown in.
package scoring

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stemsi/exstem-quiz/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Outcome is the graded form of one submission.
type Outcome struct {
	Correct    int
	Total      int
	Percentage decimal.Decimal
	Details    []model.DetailRecord
}

// Score grades answers (keyed by question id) against every question in bank.
// Unanswered or blank answers are recorded as model.NotAnswered and count as
// incorrect. Comparison is exact and case-sensitive. A question present twice
// in the bank is graded twice.
func Score(answers map[string]string, bank []model.Question) Outcome {
	out := Outcome{
		Total:   len(bank),
		Details: make([]model.DetailRecord, 0, len(bank)),
	}

	for _, q := range bank {
		given := answers[q.ID.String()]
		correct := given != "" && given == q.CorrectAnswer
		if correct {
			out.Correct++
		}
		if given == "" {
			given = model.NotAnswered
		}
		out.Details = append(out.Details, model.DetailRecord{
			Question:      q.Question,
			UserAnswer:    given,
			CorrectAnswer: q.CorrectAnswer,
			IsCorrect:     correct,
		})
	}

	out.Percentage = Percentage(out.Correct, out.Total)
	return out
}

// Percentage returns 100*correct/total, or zero for an empty bank.
func Percentage(correct, total int) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(correct)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(total)))
}

// FormatDuration renders seconds as "%dh %dm %ds". Negative input is clamped to zero.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dh %dm %ds", seconds/3600, (seconds%3600)/60, seconds%60)
}
