// Package resultlog keeps the human-readable audit trail of scored exams.
//
// The database row written by the exam service is authoritative. Everything
// here is best effort: callers log failures and move on.
package resultlog

import (
	"fmt"
	"strings"
	"time"

	"github.com/stemsi/exstem-quiz/internal/model"
)

const (
	separator      = "==========================================="
	timeNotTracked = "Not recorded"
	timestampFmt   = "2006-01-02 15:04:05 MST"
)

// Entry is one submission as written to the audit trail.
type Entry struct {
	ResultID       string               `json:"resultId"`
	Email          string               `json:"email"`
	Score          int                  `json:"score"`
	TotalQuestions int                  `json:"totalQuestions"`
	Percentage     string               `json:"percentage"`
	TimeSpent      string               `json:"timeSpent"`
	RecordedAt     time.Time            `json:"recordedAt"`
	Details        []model.DetailRecord `json:"details"`
}

// NewEntry builds an Entry from a persisted result.
func NewEntry(res *model.Result) Entry {
	return Entry{
		ResultID:       res.ID.String(),
		Email:          res.Email,
		Score:          res.Score,
		TotalQuestions: res.TotalQuestions,
		Percentage:     res.Percentage.StringFixed(2),
		TimeSpent:      res.TimeSpent,
		RecordedAt:     res.CreatedAt,
		Details:        res.DetailedResults,
	}
}

// Format renders e as a plain-text block ready to append to the log file.
func Format(e Entry) string {
	var b strings.Builder

	timeSpent := e.TimeSpent
	if timeSpent == "" {
		timeSpent = timeNotTracked
	}

	b.WriteString("\n" + separator + "\n")
	fmt.Fprintf(&b, "Exam Results - %s\n", e.RecordedAt.Format(timestampFmt))
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "Email: %s\n", e.Email)
	fmt.Fprintf(&b, "Score: %d/%d\n", e.Score, e.TotalQuestions)
	fmt.Fprintf(&b, "Percentage: %s%%\n", e.Percentage)
	fmt.Fprintf(&b, "Time Spent: %s\n", timeSpent)
	b.WriteString("\nDetailed Question Analysis:\n")

	for i, d := range e.Details {
		status := "✗ Incorrect"
		if d.IsCorrect {
			status = "✓ Correct"
		}
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "\nQuestion %d: %s\n", i+1, d.Question)
		fmt.Fprintf(&b, "Your Answer: %s\n", d.UserAnswer)
		fmt.Fprintf(&b, "Correct Answer: %s\n", d.CorrectAnswer)
		fmt.Fprintf(&b, "Status: %s\n", status)
	}

	b.WriteString("\n" + separator + "\n\n")
	return b.String()
}
